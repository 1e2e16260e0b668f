package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meseboard/internal/clock"
	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/smallbiznis/meseboard/internal/csvfile"
	"github.com/smallbiznis/meseboard/internal/record/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shanghai = time.FixedZone("CST", 8*60*60)

func newTestNormalizer(now time.Time) *Normalizer {
	holder := config.NewStaticIngestConfigHolder(config.DefaultIngestConfig())
	return New(holder, shanghai, clock.NewFakeClock(now))
}

func decode(t *testing.T, content string) *csvfile.Table {
	t.Helper()
	table, err := csvfile.Decode([]byte(content), csvfile.Options{})
	require.NoError(t, err)
	return table
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{raw: "2025/7/16 9:27:22", want: time.Date(2025, 7, 16, 1, 27, 22, 0, time.UTC), ok: true},
		{raw: "2025-11-20 16:00", want: time.Date(2025, 11, 20, 8, 0, 0, 0, time.UTC), ok: true},
		{raw: "2025-01-02", want: time.Date(2025, 1, 1, 16, 0, 0, 0, time.UTC), ok: true},
		{raw: "2025-01-02T03:04:05Z", want: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), ok: true},
		{raw: "", ok: false},
		{raw: "not a date", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := ParseTimestamp(tc.raw, shanghai)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.True(t, tc.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestParseNumbers(t *testing.T) {
	assert.Equal(t, 2.12, ParseReal("2.12天"))
	assert.Equal(t, 0.0, ParseReal("abc"))
	assert.Equal(t, -1.5, ParseReal(" -1.5 "))

	assert.Equal(t, 1234, ParseCount("1,234"))
	assert.Equal(t, 3, ParseCount("3.9"))
	assert.Equal(t, 0, ParseCount("-2"))
	assert.Equal(t, 0, ParseCount(""))

	assert.True(t, decimal.RequireFromString("1234.50").Equal(ParseMoney("¥1,234.5")))
	assert.True(t, decimal.RequireFromString("12.35").Equal(ParseMoney("12.345元")))
	assert.True(t, decimal.Zero.Equal(ParseMoney("—")))
}

func TestPartitions(t *testing.T) {
	assert.Equal(t, 2025, OverviewYear("MBY25-0001", 2020))
	assert.Equal(t, 2020, OverviewYear("ABC", 2020))

	assert.Equal(t, 2024, LedgerYear("三包台账（2024）2025版.csv", 2000))
	assert.Equal(t, 2023, LedgerYear("ledger(2023).csv", 2000))
	assert.Equal(t, 2022, LedgerYear("ledger_2022.csv", 2000))
	assert.Equal(t, 2000, LedgerYear("ledger.csv", 2000))

	month, ok := MonthFromFilename("周期统计25年3月.csv")
	require.True(t, ok)
	assert.Equal(t, "2025-03", month)

	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	got, err := ResolveStatMonth("2024-12", "25年3月.csv", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-12", got)

	got, err = ResolveStatMonth("", "cycle.csv", now)
	require.NoError(t, err)
	assert.Equal(t, "2025-06", got)

	_, err = ResolveStatMonth("2024-13", "", now)
	assert.ErrorIs(t, err, ErrInvalidStatMonth)
}

func TestOverviewMapsAliasesAndDropsSerialless(t *testing.T) {
	n := newTestNormalizer(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	table := decode(t, "三包流水号,分公司,项目名称,物料名称,图号,三包数量,故障描述\n"+
		"MBY25-0001,华东,项目A,主板,D-1,2,异响\n"+
		",华南,项目B,主板,D-2,1,漏油\n"+
		"XYZ,华北,项目C,门机,D-3,x,\n")

	records, err := n.Overview(table)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "MBY25-0001", records[0].SerialNumber)
	assert.Equal(t, 2025, records[0].ReportYear)
	assert.Equal(t, "华东", records[0].Department)
	assert.Equal(t, "项目A", records[0].CustomerName)
	assert.Equal(t, 2, records[0].WarrantyCount)
	assert.Equal(t, "异响", records[0].FaultDescription)

	assert.Equal(t, 2026, records[1].ReportYear)
	assert.Equal(t, 0, records[1].WarrantyCount)
}

func TestOverviewRejectsMissingKeyColumn(t *testing.T) {
	n := newTestNormalizer(time.Now())
	_, err := n.Overview(decode(t, "部门,物料名称\n华东,主板\n"))
	assert.ErrorIs(t, err, ErrMissingKeyColumn)
}

func TestAliasPrecedenceTakesFirstNonEmpty(t *testing.T) {
	n := newTestNormalizer(time.Now())
	table := decode(t, "serial_number,department,分公司\nA24-1,,华东\nA24-2,总部,华西\n")

	records, err := n.Overview(table)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "华东", records[0].Department)
	assert.Equal(t, "总部", records[1].Department)
}

func TestPersonNodesUseSentinelForMissingTimes(t *testing.T) {
	n := newTestNormalizer(time.Now())
	table := decode(t, "三包流水号\t处理开始时间\t处理结束时间\t流程节点\t处理人姓名\n"+
		"A25-1\t2025/7/16 9:27:22\t\t分公司审核\t张三\n"+
		"A25-1\tbad\t2025-07-17 10:00\t总部审核\t李四\n")

	records, err := n.PersonNodes(table)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.True(t, records[0].StartTime.Equal(time.Date(2025, 7, 16, 1, 27, 22, 0, time.UTC)))
	assert.True(t, records[0].EndTime.Equal(domain.SentinelTime))
	assert.True(t, records[1].StartTime.Equal(domain.SentinelTime))
	assert.Equal(t, "李四", records[1].PersonName)
}

func TestCycleStatsMapsDurationsAndMaterialType(t *testing.T) {
	n := newTestNormalizer(time.Now())
	table := decode(t, "三包流水号,总部制造发运时间,总部审核处置时间,分公司审核提交时间,补充调查时间,分公司现场调查时间,全周期统计时间,提出部门,客户名称,备注\n"+
		"A25-1,1.5天,2,0.5,1,3,8.25,华东,客户甲,非基板\n"+
		"A25-2,,,,,,,华南,客户乙,\n")

	records, err := n.CycleStats(table, "2025-03")
	require.NoError(t, err)
	require.Len(t, records, 2)

	r := records[0]
	assert.Equal(t, "2025-03", r.StatMonth)
	assert.Equal(t, 1.5, r.HQDispatchTime)
	assert.Equal(t, r.HQDispatchTime, r.ShipTime)
	assert.Equal(t, 8.25, r.TotalCycleTime)
	assert.Equal(t, 4.5, r.SMECTime())
	assert.Equal(t, "华东", r.Department)
	assert.Equal(t, "非基板", r.MaterialType)

	assert.Equal(t, 0.0, records[1].TotalCycleTime)
	assert.Equal(t, "", records[1].MaterialType)
}

func TestDetectMaterialTypePrefersLabelledColumn(t *testing.T) {
	header := []string{"基板类型", "x", "y"}
	row := csvfile.Row{"基板类型": "基板", "x": "非基板", "y": "基板"}
	assert.Equal(t, "基板", DetectMaterialType(header, row, []string{"基板类型"}))

	row = csvfile.Row{"基板类型": "", "x": "基板", "y": "非基板"}
	assert.Equal(t, "非基板", DetectMaterialType(header, row, []string{"基板类型"}))
}

func TestLedgerMapsMoneyAndApplyDate(t *testing.T) {
	n := newTestNormalizer(time.Now())
	table := decode(t, "TR编号,责任科室,客户,统计-数量,预估三包费用,TR状态区分,TR提出日期\n"+
		"TR-1,品质科,客户甲,2,\"¥1,200.50\",已结案,2024/3/5\n"+
		"TR-2,品质科,客户乙,1,80,处理中,unknown\n")

	records, err := n.Ledger(table, n.ReportYearFor("台账（2024）.csv"))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 2024, records[0].ReportYear)
	assert.Equal(t, "品质科", records[0].Department)
	assert.Equal(t, 2, records[0].Quantity)
	assert.True(t, decimal.RequireFromString("1200.50").Equal(records[0].Amount))
	require.NotNil(t, records[0].ApplyDate)
	assert.True(t, records[0].ApplyDate.Equal(time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC)))

	assert.Nil(t, records[1].ApplyDate)
}
