package recurring

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMonth(t *testing.T, dir, month string, rows []string) {
	t.Helper()
	content := "transaction_id,date,month,merchant,description,amount\n"
	for _, row := range rows {
		content += row + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, month+".csv"), []byte(content), 0o644))
}

func TestDetectStableMerchant(t *testing.T) {
	dir := t.TempDir()
	// Three distinct months, amounts 10.00/10.50/9.80: every monthly mean
	// is within 20% of the median (10.00).
	writeMonth(t, dir, "2025-11", []string{"a,2025-11-05,2025-11,NETFLIX.COM,sub,-10.00"})
	writeMonth(t, dir, "2025-12", []string{"b,2025-12-05,2025-12,NETFLIX.COM,sub,-10.50"})
	writeMonth(t, dir, "2026-01", []string{"c,2026-01-05,2026-01,NETFLIX.COM,sub,-9.80"})

	detected, err := Detect(dir)
	require.NoError(t, err)
	assert.True(t, detected["NETFLIX.COM"])
}

func TestDetectRequiresThreeMonths(t *testing.T) {
	dir := t.TempDir()
	writeMonth(t, dir, "2025-12", []string{"a,2025-12-05,2025-12,NETFLIX.COM,sub,-10.00"})
	writeMonth(t, dir, "2026-01", []string{"b,2026-01-05,2026-01,NETFLIX.COM,sub,-10.00"})

	detected, err := Detect(dir)
	require.NoError(t, err)
	assert.False(t, detected["NETFLIX.COM"])
}

func TestDetectRejectsUnstableAmounts(t *testing.T) {
	dir := t.TempDir()
	writeMonth(t, dir, "2025-11", []string{"a,2025-11-05,2025-11,GROCERY,food,-50.00"})
	writeMonth(t, dir, "2025-12", []string{"b,2025-12-05,2025-12,GROCERY,food,-120.00"})
	writeMonth(t, dir, "2026-01", []string{"c,2026-01-05,2026-01,GROCERY,food,-45.00"})

	detected, err := Detect(dir)
	require.NoError(t, err)
	assert.False(t, detected["GROCERY"])
}

func TestDetectCollapsesSameMonthCharges(t *testing.T) {
	dir := t.TempDir()
	// Two January charges collapse to their mean (10.00), keeping the
	// merchant stable across three months.
	writeMonth(t, dir, "2025-11", []string{"a,2025-11-05,2025-11,GYM,dues,-10.00"})
	writeMonth(t, dir, "2025-12", []string{"b,2025-12-05,2025-12,GYM,dues,-10.00"})
	writeMonth(t, dir, "2026-01", []string{
		"c,2026-01-05,2026-01,GYM,dues,-9.00",
		"d,2026-01-20,2026-01,GYM,dues,-11.00",
	})

	detected, err := Detect(dir)
	require.NoError(t, err)
	assert.True(t, detected["GYM"])
}

func TestDetectMissingDirectory(t *testing.T) {
	detected, err := Detect(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, detected)
}

func TestDetectSkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.csv"), []byte("no,header,match\n1,2,3\n"), 0o644))
	for i, month := range []string{"2025-11", "2025-12", "2026-01"} {
		writeMonth(t, dir, month, []string{fmt.Sprintf("a%d,%s-05,%s,NETFLIX.COM,sub,-10.00", i, month, month)})
	}

	detected, err := Detect(dir)
	require.NoError(t, err)
	assert.True(t, detected["NETFLIX.COM"])
}
