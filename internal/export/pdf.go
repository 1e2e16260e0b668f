package export

import (
	"fmt"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/meseboard/internal/analytics"
	"github.com/smallbiznis/meseboard/internal/dashboard/domain"
)

const reportTopRows = 5

// ReportFilename names the yearly KPI report.
func ReportFilename(year int) string {
	return fmt.Sprintf("report_%d.pdf", year)
}

// RenderYearReport lays out the KPIs of one year on a single page.
func RenderYearReport(data *domain.YearData) ([]byte, error) {
	if data == nil {
		data = &domain.YearData{}
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(12, fmt.Sprintf("Warranty report %d", data.Year), props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Tickets: "+strconv.FormatInt(data.TotalCount, 10), props.Text{Top: 0}),
			text.New("Avg cycle (days): "+analytics.Fixed2(data.AvgCycleTime), props.Text{Top: 5}),
			text.New(fmt.Sprintf("Top department: %s (%d)", data.TopDept.Name, data.TopDept.Count), props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Amount total: "+data.AmountTotal.StringFixed(2), props.Text{Top: 0}),
			text.New("Avg amount: "+data.AvgAmount.StringFixed(2), props.Text{Top: 5}),
			text.New("Close rate: "+analytics.Fixed2(data.CloseRate)+"%", props.Text{Top: 10}),
		),
	)

	addBucketTable(m, "Departments", data.DepartmentData)
	addBucketTable(m, "Warranty types", data.WarrantyTypeData)
	addBucketTable(m, "Top materials", data.TopMaterials)

	m.AddRow(10,
		text.NewCol(12, "Department amount", props.Text{Size: 11, Style: fontstyle.Bold, Top: 3}),
	)
	for _, b := range analytics.TopN(data.DeptAmountTop, reportTopRows) {
		m.AddRow(6,
			text.NewCol(9, b.Name, props.Text{Size: 9}),
			text.NewCol(3, b.Value.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		text.NewCol(12, "Monthly cycle time", props.Text{Size: 11, Style: fontstyle.Bold, Top: 3}),
	)
	for _, p := range data.MonthlyTrend {
		m.AddRow(6,
			text.NewCol(6, p.Month, props.Text{Size: 9}),
			text.NewCol(6, p.AvgTime, props.Text{Size: 9, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func addBucketTable(m core.Maroto, title string, buckets []analytics.Bucket) {
	m.AddRow(10,
		text.NewCol(12, title, props.Text{Size: 11, Style: fontstyle.Bold, Top: 3}),
	)
	for _, b := range analytics.TopN(buckets, reportTopRows) {
		m.AddRow(6,
			text.NewCol(9, b.Name, props.Text{Size: 9}),
			text.NewCol(3, strconv.Itoa(b.Value), props.Text{Size: 9, Align: align.Right}),
		)
	}
}
