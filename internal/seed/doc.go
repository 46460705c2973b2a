// Package seed turns raw seed text into crawl targets.
//
// Seed input is a sequence of groups, each a sequence of cells: the rows
// and fields of a CSV file, or the rows and cells of every sheet of an
// XLSX workbook. Every cell is scanned with Extract, which finds the
// http and https onion URLs embedded in free text.
package seed
