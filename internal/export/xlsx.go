// Package export renders dashboard data as downloadable files.
package export

import (
	"fmt"
	"io"

	"github.com/smallbiznis/meseboard/internal/dashboard/domain"
	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"

	detailSheet = "明细"
)

var columnTitles = map[string]string{
	"serial_number":  "三包流水号",
	"material_name":  "物料名称",
	"drawing_number": "图号",
	"apply_date":     "申请日期",
	"customer_name":  "客户名称",
	"department":     "部门",
	"category":       "问题类别",
	"amount":         "金额",
	"status":         "结案状态",
	"resolution":     "处理方式",
	"cause":          "原因",
	"warranty_type":  "三包类型",
}

// ColumnTitle returns the display header of a detail column.
func ColumnTitle(column string) string {
	if title, ok := columnTitles[column]; ok {
		return title
	}
	return column
}

// DetailFilename names the spreadsheet of one drill-down.
func DetailFilename(year int, kind domain.DetailKind) string {
	return fmt.Sprintf("details_%d_%s.xlsx", year, kind)
}

// WriteDetailXLSX writes the list as a single-sheet workbook. Amounts are
// stored as numbers, everything else as text. Blank values leave the cell
// empty.
func WriteDetailXLSX(w io.Writer, list *domain.DetailList) error {
	if list == nil {
		list = &domain.DetailList{}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", detailSheet); err != nil {
		return err
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for i, column := range list.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(detailSheet, cell, ColumnTitle(column)); err != nil {
			return err
		}
		if err := f.SetCellStyle(detailSheet, cell, cell, header); err != nil {
			return err
		}
	}

	for r, row := range list.Rows {
		for c, column := range list.Columns {
			var value any = row.Value(column)
			if column == "amount" && row.Amount != nil {
				value = row.Amount.InexactFloat64()
			}
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(detailSheet, cell, value); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}
