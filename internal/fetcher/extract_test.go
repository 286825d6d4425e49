package fetcher

import "testing"

func TestParseSnapshotNoDataSelector(t *testing.T) {
	policy := DefaultSyncPolicy()
	policy.NoDataSelector = ".empty-state"
	policy.NoDataText = ""

	snap, err := parseSnapshot(`<div class="empty-state">Nothing here yet</div>`, policy)
	if err != nil {
		t.Fatalf("parseSnapshot: %v", err)
	}
	if !snap.noData {
		t.Fatal("selector-only marker should be detected")
	}

	snap, err = parseSnapshot(`<div class="other">No data available</div>`, policy)
	if err != nil {
		t.Fatalf("parseSnapshot: %v", err)
	}
	if snap.noData {
		t.Fatal("marker outside the configured selector should be ignored")
	}
}

func TestParseSnapshotNoDataTextIsCaseInsensitive(t *testing.T) {
	snap, err := parseSnapshot(noDataPage, DefaultSyncPolicy())
	if err != nil {
		t.Fatalf("parseSnapshot: %v", err)
	}
	if !snap.noData {
		t.Fatal("expected no-data marker")
	}
	if snap.populated(2) {
		t.Fatal("single-cell placeholder row should not count as populated")
	}
	if !snap.populated(1) {
		t.Fatal("with MinCells=1 the placeholder row counts as content")
	}
}

func TestParseSnapshotWithoutMarkerConfig(t *testing.T) {
	policy := DefaultSyncPolicy()
	policy.NoDataText = ""
	snap, err := parseSnapshot(noDataPage, policy)
	if err != nil {
		t.Fatalf("parseSnapshot: %v", err)
	}
	if snap.noData {
		t.Fatal("no marker configured, nothing should be detected")
	}
}

func TestParseSnapshotSkipsEmptyCells(t *testing.T) {
	html := `<table class="v-table"><tbody><tr><td> </td><td></td><td>x</td></tr></tbody></table>`
	snap, err := parseSnapshot(html, DefaultSyncPolicy())
	if err != nil {
		t.Fatalf("parseSnapshot: %v", err)
	}
	if len(snap.rows) != 1 || len(snap.rows[0].Cells) != 3 {
		t.Fatalf("unexpected rows %+v", snap.rows)
	}
	if snap.populated(2) {
		t.Fatal("only one non-empty cell, row should not count as populated")
	}
}

func TestParseSnapshotScopesToFirstTable(t *testing.T) {
	snap, err := parseSnapshot(siblingEmptyPage, DefaultSyncPolicy())
	if err != nil {
		t.Fatalf("parseSnapshot: %v", err)
	}
	if snap.noData {
		t.Fatal("marker in a sibling table should be ignored")
	}
	if len(snap.rows) != 0 {
		t.Fatalf("rows of the sibling table leaked in: %+v", snap.rows)
	}
	if len(snap.header) != 7 {
		t.Fatalf("expected the activity table header, got %v", snap.header)
	}
}

func TestParseSnapshotWholeDocumentWithoutTableSelector(t *testing.T) {
	policy := DefaultSyncPolicy()
	policy.TableSelector = ""
	snap, err := parseSnapshot(siblingEmptyPage, policy)
	if err != nil {
		t.Fatalf("parseSnapshot: %v", err)
	}
	if !snap.noData || len(snap.rows) != 1 {
		t.Fatalf("unscoped policy should see every table, got %+v", snap)
	}
}
