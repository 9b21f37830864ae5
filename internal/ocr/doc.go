// Package ocr defines the text extraction boundary used by the
// scanner and provides the production implementation backed by the
// tesseract binary. The Extractor interface keeps the engine
// substitutable with deterministic stubs in tests.
package ocr
