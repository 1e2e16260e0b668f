// Package viewstate keeps per-viewer dashboard display state on the server.
// A State changes only through named Actions applied by Reduce, and Render
// derives the payload from it without side effects.
package viewstate

import (
	"errors"

	"github.com/smallbiznis/meseboard/internal/dashboard/domain"
	"github.com/smallbiznis/meseboard/internal/dashboard/view"
)

var (
	ErrUnknownAction    = errors.New("unknown_action")
	ErrUnknownModal     = errors.New("unknown_modal")
	ErrFilterNotAllowed = errors.New("filter_not_allowed")
	ErrSessionNotFound  = errors.New("view_session_not_found")
	ErrNoModalOpen      = errors.New("no_modal_open")
)

type Modal string

const (
	ModalNone        Modal = ""
	ModalTrend       Modal = "trend"
	ModalAmount      Modal = "amount"
	ModalFaults      Modal = "faults"
	ModalDepartments Modal = "deptTop"
	ModalCustomers   Modal = "customerAmount"
	ModalDetail      Modal = "detailList"
)

// modalFilters lists the filters each modal accepts.
var modalFilters = map[Modal][]string{
	ModalTrend:       {domain.FilterDepartment, domain.FilterCustomer, domain.FilterMaterialType},
	ModalAmount:      {domain.FilterDepartment, domain.FilterCustomer},
	ModalFaults:      {domain.FilterDepartment, domain.FilterCustomer},
	ModalDepartments: {domain.FilterCustomer, domain.FilterWarrantyType},
	ModalCustomers:   {domain.FilterDepartment, domain.FilterCategory},
}

const (
	ActionSelectYear   = "select_year"
	ActionRefresh      = "refresh"
	ActionOpenModal    = "open_modal"
	ActionCloseModal   = "close_modal"
	ActionSetFilter    = "set_filter"
	ActionResetFilters = "reset_filters"
	ActionOpenDetail   = "open_detail"
)

type Action struct {
	Type   string `json:"type" binding:"required"`
	Year   int    `json:"year,omitempty"`
	Modal  Modal  `json:"modal,omitempty"`
	Filter string `json:"filter,omitempty"`
	Value  string `json:"value,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

type Detail struct {
	Kind  domain.DetailKind `json:"kind"`
	Value string            `json:"value"`
}

// State is one viewer's dashboard. Token identifies the fetch whose result
// the state is waiting for; results carrying any other token are stale.
type State struct {
	Year    int
	Token   uint64
	Loading bool
	Err     string
	Dataset *domain.Dataset
	Modal   Modal
	Filters domain.Filters
	Detail  *Detail
}

// Reduce applies a to s. The returned bool asks the caller to fetch the
// dataset of the returned state's Year under its Token.
func Reduce(s State, a Action) (State, bool, error) {
	switch a.Type {
	case ActionSelectYear:
		if a.Year < 2000 || a.Year > 2099 {
			return s, false, domain.ErrInvalidYear
		}
		next := State{Year: a.Year, Token: s.Token + 1, Loading: true}
		return next, true, nil

	case ActionRefresh:
		s.Token++
		s.Loading = true
		return s, true, nil

	case ActionOpenModal:
		if _, ok := modalFilters[a.Modal]; !ok {
			return s, false, ErrUnknownModal
		}
		s.Modal = a.Modal
		s.Filters = domain.Filters{}
		s.Detail = nil
		return s, false, nil

	case ActionCloseModal:
		s.Modal = ModalNone
		s.Filters = domain.Filters{}
		s.Detail = nil
		return s, false, nil

	case ActionSetFilter:
		if s.Modal == ModalNone || s.Modal == ModalDetail {
			return s, false, ErrNoModalOpen
		}
		if !allowed(s.Modal, a.Filter) {
			return s, false, ErrFilterNotAllowed
		}
		s.Filters.Set(a.Filter, a.Value)
		return s, false, nil

	case ActionResetFilters:
		s.Filters = domain.Filters{}
		return s, false, nil

	case ActionOpenDetail:
		kind, err := domain.ParseDetailKind(a.Kind)
		if err != nil {
			return s, false, err
		}
		s.Modal = ModalDetail
		s.Filters = domain.Filters{}
		s.Detail = &Detail{Kind: kind, Value: a.Value}
		return s, false, nil

	default:
		return s, false, ErrUnknownAction
	}
}

func allowed(m Modal, filter string) bool {
	for _, f := range modalFilters[m] {
		if f == filter {
			return true
		}
	}
	return false
}

// ApplyFetch stores the result of the fetch issued under token. A result
// for a superseded token is dropped and reported as not applied.
func ApplyFetch(s State, token uint64, ds *domain.Dataset, err error) (State, bool) {
	if token != s.Token {
		return s, false
	}
	s.Loading = false
	if err != nil {
		s.Err = err.Error()
		s.Dataset = nil
		return s, true
	}
	s.Err = ""
	s.Dataset = ds
	return s, true
}

// Rendered is what a viewer sees.
type Rendered struct {
	Year      int                 `json:"year"`
	Loading   bool                `json:"loading"`
	Error     string              `json:"error,omitempty"`
	Dashboard *domain.YearData    `json:"dashboard,omitempty"`
	Modal     Modal               `json:"modal,omitempty"`
	Filters   domain.Filters      `json:"filters"`
	Options   map[string][]string `json:"options,omitempty"`
	Detail    *Detail             `json:"detail,omitempty"`
	View      any                 `json:"view,omitempty"`
}

func Render(s State, detailLimit int) Rendered {
	out := Rendered{
		Year:    s.Year,
		Loading: s.Loading,
		Error:   s.Err,
		Modal:   s.Modal,
		Filters: s.Filters,
		Detail:  s.Detail,
	}
	ds := s.Dataset
	if ds == nil {
		return out
	}

	out.Dashboard = view.Year(ds)
	options := view.FilterOptions(ds)
	switch s.Modal {
	case ModalTrend:
		out.Options = options.Trend
		out.View = view.Trend(ds, s.Filters)
	case ModalAmount:
		out.Options = options.Amount
		out.View = view.Amount(ds, s.Filters)
	case ModalFaults:
		out.Options = options.Faults
		out.View = view.Faults(ds, s.Filters)
	case ModalDepartments:
		out.Options = options.Departments
		out.View = view.Departments(ds, s.Filters)
	case ModalCustomers:
		out.Options = options.Customers
		out.View = view.Customers(ds, s.Filters)
	case ModalDetail:
		if s.Detail != nil {
			if list, err := view.Details(ds, s.Detail.Kind, s.Detail.Value, detailLimit); err == nil {
				out.View = list
			}
		}
	}
	return out
}
