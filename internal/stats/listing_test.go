package stats

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"
)

// fifteenRuns returns 15 runs on consecutive days; "run-14" is the newest
func fifteenRuns(t *testing.T) Table {
	t.Helper()
	var records []Record
	for i := 0; i < 15; i++ {
		local := time.Date(2025, 2, 1+i, 7, 0, 0, 0, time.UTC).Format(time.RFC3339)
		records = append(records, activityRecord(int64(i+1), fmt.Sprintf("run-%d", i), "Run", local, 5000, 1800, 50))
	}
	return mustNormalize(t, records...)
}

func TestPaginate_SecondPage(t *testing.T) {
	page, err := Paginate(fifteenRuns(t), testLocale, 2, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(page.Activities) != 5 {
		t.Errorf("expected 5 activities, got %d", len(page.Activities))
	}
	if page.CurrentPage != 2 || page.TotalPages != 2 || page.TotalItems != 15 || page.PerPage != 10 {
		t.Errorf("unexpected page metadata %+v", page)
	}
	if page.HasNext {
		t.Error("expected has_next false")
	}
	if !page.HasPrevious {
		t.Error("expected has_previous true")
	}
	// oldest five
	if page.Activities[4].Name != "run-0" {
		t.Errorf("expected last item 'run-0', got %q", page.Activities[4].Name)
	}
}

func TestPaginate_Formatting(t *testing.T) {
	table := mustNormalize(t, activityRecord(7, "Run", "Run", "2025-03-10T07:05:00Z", 5000, 1800, 50.4))

	page, err := Paginate(table, testLocale, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := page.Activities[0]

	if v.Distance != "5.0" {
		t.Errorf("expected distance '5.0', got %q", v.Distance)
	}
	if v.Elevation != "50" {
		t.Errorf("expected elevation '50', got %q", v.Elevation)
	}
	if v.Date != "10/03/2025" || v.Time != "07:05" {
		t.Errorf("unexpected date/time %q %q", v.Date, v.Time)
	}
	if v.SportType != "Corrida" || v.SportTypeKey != "Run" {
		t.Errorf("unexpected sport %q/%q", v.SportType, v.SportTypeKey)
	}
	if v.Week != 11 || v.Month != 3 {
		t.Errorf("expected week 11 month 3, got %d/%d", v.Week, v.Month)
	}
	if v.ID != 0 {
		t.Errorf("paginated rows do not carry ids, got %d", v.ID)
	}
}

func TestPaginate_PagesConcatenateToListing(t *testing.T) {
	table := fifteenRuns(t)

	for _, perPage := range []int{1, 4, 7, 15, 20} {
		var names []string
		for p := 1; ; p++ {
			page, err := Paginate(table, testLocale, p, perPage)
			if err != nil {
				t.Fatalf("perPage %d page %d: %v", perPage, p, err)
			}
			for _, a := range page.Activities {
				names = append(names, a.Name)
			}
			if !page.HasNext {
				break
			}
		}

		var want []string
		for _, a := range ListAll(table, testLocale) {
			want = append(want, a.Name)
		}
		if !reflect.DeepEqual(names, want) {
			t.Errorf("perPage %d: pages %v do not match listing %v", perPage, names, want)
		}
	}
}

func TestPaginate_PastEnd(t *testing.T) {
	page, err := Paginate(fifteenRuns(t), testLocale, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Activities) != 0 {
		t.Errorf("expected no activities, got %d", len(page.Activities))
	}
	if page.CurrentPage != 5 || page.HasNext || !page.HasPrevious {
		t.Errorf("unexpected metadata %+v", page)
	}
}

func TestPaginate_HugeParameters(t *testing.T) {
	table := fifteenRuns(t)

	tests := []struct {
		name         string
		page         int
		perPage      int
		wantItems    int
		wantPages    int
		wantNext     bool
		wantPrevious bool
	}{
		{"huge page", math.MaxInt, 50, 0, 1, false, true},
		{"huge per page, second page", 2, math.MaxInt, 0, 1, false, true},
		{"huge per page, first page", 1, math.MaxInt, 15, 1, false, false},
		{"both huge", math.MaxInt, math.MaxInt, 0, 1, false, true},
		{"last page of one-item pages", 15, 1, 1, 15, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Paginate(table, testLocale, tt.page, tt.perPage)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(page.Activities) != tt.wantItems {
				t.Errorf("expected %d activities, got %d", tt.wantItems, len(page.Activities))
			}
			if page.TotalPages != tt.wantPages || page.TotalItems != 15 {
				t.Errorf("unexpected totals %d pages / %d items", page.TotalPages, page.TotalItems)
			}
			if page.HasNext != tt.wantNext || page.HasPrevious != tt.wantPrevious {
				t.Errorf("has_next=%v has_previous=%v", page.HasNext, page.HasPrevious)
			}
			if page.CurrentPage != tt.page || page.PerPage != tt.perPage {
				t.Errorf("unexpected echo of parameters %+v", page)
			}
		})
	}
}

func TestPaginate_Empty(t *testing.T) {
	page, err := Paginate(Table{}, testLocale, 3, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Activities == nil || len(page.Activities) != 0 {
		t.Errorf("expected empty non-nil activities, got %#v", page.Activities)
	}
	if page.CurrentPage != 1 || page.TotalPages != 0 || page.TotalItems != 0 {
		t.Errorf("unexpected metadata %+v", page)
	}
	if page.HasNext || page.HasPrevious {
		t.Errorf("expected no navigation, got %+v", page)
	}
}

func TestPaginate_InvalidParameters(t *testing.T) {
	tests := []struct {
		page, perPage int
		param         string
	}{
		{0, 10, "page"},
		{-1, 10, "page"},
		{1, 0, "per_page"},
	}

	for _, tt := range tests {
		_, err := Paginate(fifteenRuns(t), testLocale, tt.page, tt.perPage)
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("page=%d perPage=%d: expected ErrInvalidParameter, got %v", tt.page, tt.perPage, err)
			continue
		}
		var pe *ParameterError
		if errors.As(err, &pe) && pe.Param != tt.param {
			t.Errorf("expected param %q, got %q", tt.param, pe.Param)
		}
	}
}

func TestListAll(t *testing.T) {
	table := mustNormalize(t,
		activityRecord(1, "older", "Run", "2025-03-09T07:00:00Z", 5000, 1800, 50),
		activityRecord(2, "newer", "Ride", "2025-03-10T07:00:00Z", 12345, 3600, 101.25),
		activityRecord(3, "same instant", "Walk", "2025-03-10T07:00:00Z", 1000, 600, 0),
	)

	got := ListAll(table, testLocale)
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}

	// equal timestamps keep input order
	if got[0].Name != "newer" || got[1].Name != "same instant" || got[2].Name != "older" {
		t.Errorf("unexpected order %q, %q, %q", got[0].Name, got[1].Name, got[2].Name)
	}
	if got[0].ID != 2 {
		t.Errorf("expected id 2, got %d", got[0].ID)
	}
	// 12345 m is 12.3449999... km in binary
	if got[0].Distance != "12.34" {
		t.Errorf("unexpected distance %q", got[0].Distance)
	}
	if got[2].Distance != "5.00" || got[2].Elevation != "50.0" {
		t.Errorf("unexpected formatting %q / %q", got[2].Distance, got[2].Elevation)
	}
}

func TestFilterActivities(t *testing.T) {
	table := mustNormalize(t,
		activityRecord(1, "Morning Run", "Run", "2025-03-10T07:00:00Z", 5000, 1800, 0),
		activityRecord(2, "Evening run", "Run", "2025-04-07T19:00:00Z", 5000, 1800, 0),
		activityRecord(3, "Commute", "Ride", "2025-03-11T08:00:00Z", 8000, 1500, 0),
		activityRecord(4, "Long Ride", "Ride", "2025-04-08T08:00:00Z", 80000, 10800, 0),
	)

	tests := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{"no filter", Filter{}, []int64{1, 2, 3, 4}},
		{"sport", Filter{SportType: "Ride"}, []int64{3, 4}},
		{"month", Filter{Month: 3}, []int64{1, 3}},
		{"week", Filter{Week: 11}, []int64{1, 3}},
		{"search is case insensitive", Filter{Search: "RUN"}, []int64{1, 2}},
		{"combined", Filter{SportType: "Run", Month: 4}, []int64{2}},
		{"no match", Filter{SportType: "Swim"}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterActivities(table, tt.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			ids := []int64{}
			for _, a := range got {
				ids = append(ids, a.ID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ids)
			}
		})
	}
}

func TestFilterActivities_Commutes(t *testing.T) {
	table := fifteenRuns(t)

	sportThenMonth, _ := FilterActivities(table, Filter{SportType: "Run"})
	sportThenMonth, _ = FilterActivities(NewTable(sportThenMonth), Filter{Month: 2})

	monthThenSport, _ := FilterActivities(table, Filter{Month: 2})
	monthThenSport, _ = FilterActivities(NewTable(monthThenSport), Filter{SportType: "Run"})

	combined, _ := FilterActivities(table, Filter{SportType: "Run", Month: 2})

	if !reflect.DeepEqual(sportThenMonth, monthThenSport) || !reflect.DeepEqual(combined, sportThenMonth) {
		t.Error("filter order changed the result")
	}
}

func TestFilterActivities_InvalidParameters(t *testing.T) {
	for _, f := range []Filter{{Week: 54}, {Week: -1}, {Month: 13}, {Month: -2}} {
		if _, err := FilterActivities(fifteenRuns(t), f); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("%+v: expected ErrInvalidParameter, got %v", f, err)
		}
	}
}

func TestFilterActivities_DoesNotMutateTable(t *testing.T) {
	table := fifteenRuns(t)
	before := table.Rows()

	if _, err := FilterActivities(table, Filter{Search: "run-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(before, table.Rows()) {
		t.Error("filtering modified the table")
	}
}

func TestListBySportType(t *testing.T) {
	table := mustNormalize(t,
		activityRecord(1, "Run", "Run", "2025-03-10T07:05:00Z", 5000, 1800, 50),
		activityRecord(2, "Ride", "Ride", "2025-03-11T08:00:00Z", 8000, 1500, 0),
	)

	got := ListBySportType(table, "Run")
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	want := SportActivity{Name: "Run", Date: "10/03/2025 07:05", Distance: "5.00", ElapsedTime: "00:30:00", Elevation: "50.0"}
	if got[0] != want {
		t.Errorf("expected %+v, got %+v", want, got[0])
	}

	if none := ListBySportType(table, "Swim"); none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", none)
	}
}

func TestSportTypes(t *testing.T) {
	table := mustNormalize(t,
		activityRecord(1, "a", "Ride", "2025-03-10T07:00:00Z", 0, 0, 0),
		activityRecord(2, "b", "Run", "2025-03-11T07:00:00Z", 0, 0, 0),
		activityRecord(3, "c", "Ride", "2025-03-12T07:00:00Z", 0, 0, 0),
	)

	got := SportTypes(table, testLocale)
	want := []SportTypeOption{{Value: "Ride", Label: "Ciclismo"}, {Value: "Run", Label: "Corrida"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
