// Парсер .xls (BIFF): ширину таблицы считаем сами, Row.LastCol() у выгрузок 1С врёт.
package fileio

import (
	"bytes"
	"errors"
	"io"

	xls "github.com/extrame/xls"
)

const xlsProbeCols = 256

// ширина листа: самая правая непустая ячейка по всем строкам
func sheetWidth(sheet *xls.WorkSheet) int {
	width := 0
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		for j := xlsProbeCols - 1; j >= width; j-- {
			if normalizeCell(row.Col(j)) != "" {
				width = j + 1
				break
			}
		}
	}
	return width
}

// .xls из 1С чаще всего cp1251, но иногда UTF-8/KOI8-R
var xlsCharsets = []string{"windows-1251", "utf-8", "koi8-r"}

func openXLS(b []byte) (*xls.WorkBook, error) {
	var lastErr error
	for _, ch := range xlsCharsets {
		wb, err := xls.OpenReader(bytes.NewReader(b), ch)
		if err == nil && wb != nil {
			return wb, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("xls: failed to open workbook")
	}
	return nil, lastErr
}

// readXLS читает первый лист, в котором есть данные.
func readXLS(r io.Reader, headerRow int) ([]map[string]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	wb, err := openXLS(b)
	if err != nil {
		return nil, err
	}

	for n := 0; n < wb.NumSheets(); n++ {
		sheet := wb.GetSheet(n)
		if sheet == nil {
			continue
		}
		width := sheetWidth(sheet)
		if width == 0 {
			continue
		}
		rows := make([][]string, 0, int(sheet.MaxRow)+1)
		for i := 0; i <= int(sheet.MaxRow); i++ {
			cols := make([]string, width)
			if row := sheet.Row(i); row != nil {
				for j := 0; j < width; j++ {
					cols[j] = normalizeCell(row.Col(j))
				}
			}
			rows = append(rows, cols)
		}
		h := pickHeader(rows, headerRow)
		return rowsToMaps(rows, h, headerRow), nil
	}
	return nil, nil
}
