// Package exporter renders transform tables into the download formats the
// report endpoints serve.
//
// This package contains two main components:
//
// CSV: semicolon-delimited, comma-decimal CSV with a UTF-8 BOM so Brazilian
// Excel installations open downloads with correct column splits, decimal
// separators and accented characters. Delimiter, decimal style and BOM are
// configurable for callers that need conventional CSV.
//
// XLSX: single-sheet workbooks built with excelize, with typed cells so
// numbers stay numbers when opened in a spreadsheet.
//
// Example usage:
//
//	var buf bytes.Buffer
//	if err := exporter.WriteCSV(&buf, table, exporter.BrazilianCSV()); err != nil {
//		return err
//	}
//
//	err := exporter.WriteXLSX(w, table, "Dados SPI")
package exporter
