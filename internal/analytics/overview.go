package analytics

import (
	"sort"

	"github.com/smallbiznis/meseboard/internal/record/domain"
)

const (
	faultGroupLimit  = 20
	faultSubTopLimit = 5
	faultSampleLimit = 5
)

type FaultSample struct {
	Serial     string `json:"serial"`
	Material   string `json:"material"`
	Customer   string `json:"customer"`
	Department string `json:"department"`
}

// FaultGroup aggregates the tickets sharing one fault description.
type FaultGroup struct {
	Desc        string        `json:"desc"`
	Count       int           `json:"count"`
	Departments []Bucket      `json:"departments"`
	Customers   []Bucket      `json:"customers"`
	Samples     []FaultSample `json:"samples"`
}

// FaultBreakdown ranks the twenty most frequent fault descriptions with their
// top five departments and customers and up to five sample tickets.
func FaultBreakdown(records []domain.OverviewRecord) []FaultGroup {
	type acc struct {
		group   FaultGroup
		members []domain.OverviewRecord
	}
	index := map[string]int{}
	var groups []*acc
	for _, r := range records {
		desc := Label(r.FaultDescription, NoDescription)
		i, ok := index[desc]
		if !ok {
			i = len(groups)
			index[desc] = i
			groups = append(groups, &acc{group: FaultGroup{Desc: desc, Samples: []FaultSample{}}})
		}
		g := groups[i]
		g.group.Count++
		g.members = append(g.members, r)
		if len(g.group.Samples) < faultSampleLimit {
			g.group.Samples = append(g.group.Samples, FaultSample{
				Serial:     r.SerialNumber,
				Material:   r.MaterialName,
				Customer:   r.CustomerName,
				Department: r.Department,
			})
		}
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].group.Count > groups[j].group.Count })
	groups = TopN(groups, faultGroupLimit)

	out := make([]FaultGroup, len(groups))
	for i, g := range groups {
		g.group.Departments = TopN(CountBy(g.members, OverviewDepartment), faultSubTopLimit)
		g.group.Customers = TopN(CountBy(g.members, OverviewCustomer), faultSubTopLimit)
		out[i] = g.group
	}
	return out
}
