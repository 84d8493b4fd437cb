package browser

import (
	"testing"

	"github.com/omertheroot/correlf/internal/compare"
)

func TestRowsFromComparisonsSkipsNilAndResolvesPath(t *testing.T) {
	comparisons := []*compare.Comparison{
		{FileName: "a.bin", SecondFileName: "upload.bin", SimilarityScore: 0.5, SimilarityRating: compare.RatingMedium},
		nil,
	}
	rows := RowsFromComparisons(comparisons, func(name string) string {
		if name == "a.bin" {
			return "/tmp/a.bin"
		}
		return ""
	})
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].CatalogPath != "/tmp/a.bin" {
		t.Errorf("CatalogPath = %q, want /tmp/a.bin", rows[0].CatalogPath)
	}
}

func TestNewSortsByDescendingScore(t *testing.T) {
	rows := []Row{
		{FileName: "low.bin", Score: 0.1},
		{FileName: "high.bin", Score: 0.9},
		{FileName: "mid.bin", Score: 0.5},
	}
	b := New(rows)
	if b.rows[0].FileName != "high.bin" || b.rows[1].FileName != "mid.bin" || b.rows[2].FileName != "low.bin" {
		t.Fatalf("rows not sorted descending: %+v", b.rows)
	}
}

func TestApplyFilterMatchesFilenameCaseInsensitive(t *testing.T) {
	b := New([]Row{
		{FileName: "BusyBox.bin", Rating: compare.RatingHigh},
		{FileName: "other.bin", Rating: compare.RatingLow},
	})
	b.searchQuery = "busybox"
	b.applyFilter()
	if len(b.filteredIdx) != 1 {
		t.Fatalf("got %d filtered rows, want 1", len(b.filteredIdx))
	}
	if b.rows[b.filteredIdx[0]].FileName != "BusyBox.bin" {
		t.Errorf("filtered to wrong row: %+v", b.rows[b.filteredIdx[0]])
	}
}

func TestApplyFilterMatchesRating(t *testing.T) {
	b := New([]Row{
		{FileName: "a.bin", Rating: compare.RatingHigh},
		{FileName: "b.bin", Rating: compare.RatingLow},
	})
	b.searchQuery = "high"
	b.applyFilter()
	if len(b.filteredIdx) != 1 {
		t.Fatalf("got %d filtered rows, want 1", len(b.filteredIdx))
	}
}

func TestClearFilterResetsToAllRows(t *testing.T) {
	b := New([]Row{{FileName: "a.bin"}, {FileName: "b.bin"}})
	b.searchQuery = "a"
	b.applyFilter()
	b.clearFilter()
	if len(b.filteredIdx) != 2 {
		t.Fatalf("got %d filtered rows after clear, want 2", len(b.filteredIdx))
	}
}

func TestMoveUpDownClampToBounds(t *testing.T) {
	b := New([]Row{{FileName: "a.bin"}, {FileName: "b.bin"}})
	b.moveUp()
	if b.currentIndex != 0 {
		t.Errorf("moveUp at 0 should stay at 0, got %d", b.currentIndex)
	}
	b.moveDown()
	if b.currentIndex != 1 {
		t.Errorf("moveDown should advance to 1, got %d", b.currentIndex)
	}
	b.moveDown()
	if b.currentIndex != 1 {
		t.Errorf("moveDown at last row should clamp to 1, got %d", b.currentIndex)
	}
}

func TestNextPagePrevPageRespectPageSize(t *testing.T) {
	b := New(make([]Row, 20))
	b.pageSize = 5
	b.nextPage()
	if b.currentIndex != 5 {
		t.Errorf("currentIndex = %d, want 5", b.currentIndex)
	}
	b.prevPage()
	if b.currentIndex != 0 {
		t.Errorf("currentIndex = %d, want 0", b.currentIndex)
	}
}

func TestTruncateShortStringUnchanged(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("truncate(short) = %q, want unchanged", got)
	}
}

func TestTruncateLongStringAddsEllipsis(t *testing.T) {
	got := truncate("this is a very long filename indeed", 10)
	if len(got) != 10 {
		t.Errorf("truncate length = %d, want 10", len(got))
	}
	if got[len(got)-3:] != "..." {
		t.Errorf("truncate(%q) missing ellipsis", got)
	}
}
