// Package extract defines the content-extraction boundary.
//
// The core indexing pipeline only depends on the Extractor interface: a
// single ExtractText operation that maps a file path to plain text and
// never fails. Registry implements it with per-extension dispatch, plain
// text and printable-byte-dump built-ins, and a recover guard around
// injected strategies so office/PDF/OCR parsers stay opaque capabilities.
package extract
