// Package ocr reads the data bar printed along the bottom of SEM field
// images using Tesseract (via gosseract/v2).
//
// Some PA search exports lack the magnification or voltage in their stub
// summary. The same values are burnt into every field image, so the report
// can recover them with ReadDataBar.
//
// # Prerequisites
//
// Tesseract and its English language data must be installed:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// TESSDATA_PREFIX is honoured by Tesseract itself.
//
// # Recognition
//
// Band crops the bottom band, converts it to grayscale and magnifies it
// before OCR; small instrument fonts are recognized far more reliably that
// way. ParseDataBar accepts the common layouts ("Mag 500x", "1.5 kX",
// "HV 20 kV", "Acc. Voltage: 20") and tolerates decimal commas.
package ocr
