/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// column widths in mm; the sum is the printable A4 width with 15 mm margins.
var breakdownCols = []struct {
	head  string
	width float64
	align string
}{
	{"#", 12, "R"},
	{"INT/EXT", 24, "C"},
	{"Location", 92, "L"},
	{"Time", 32, "L"},
	{"Lines", 20, "R"},
}

// WritePDF renders an A4 scene breakdown sheet: one table row per scene
// followed by totals. Text uses the core Helvetica font, so characters
// outside cp1252 are replaced.
func WritePDF(w io.Writer, d Document) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(d.Title+" - scene breakdown"), false)
	pdf.SetCreator("scenebreak", false)

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range breakdownCols {
			pdf.CellFormat(c.width, 7, c.head, "1", 0, c.align, true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr(d.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, "Generated "+d.GeneratedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(3)
	header()

	total := 0
	byTag := map[string]int{}
	for _, s := range d.Scenes {
		tag, tod := "", ""
		if s.IntExt != nil {
			tag = *s.IntExt
		}
		if s.TimeOfDay != nil {
			tod = *s.TimeOfDay
		}
		cells := []string{strconv.Itoa(s.Index + 1), tag, s.Location, tod, strconv.Itoa(s.LineCount)}
		for i, c := range breakdownCols {
			pdf.CellFormat(c.width, 6, tr(fit(pdf, cells[i], c.width-2)), "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
		total += s.LineCount
		if tag == "" {
			tag = "(none)"
		}
		byTag[tag]++
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Scenes: %d   Body lines: %d", len(d.Scenes), total), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	tags := make([]string, 0, len(byTag))
	for t := range byTag {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	for _, t := range tags {
		pdf.CellFormat(0, 5, fmt.Sprintf("%s: %d", t, byTag[t]), "", 1, "L", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

// fit truncates s with "..." so it fits in width mm at the current font.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
