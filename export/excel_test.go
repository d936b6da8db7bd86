package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/benefit-engine/benefit"
)

func readRows(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestWriteReport(t *testing.T) {
	// GIVEN: Two requests
	// WHEN: Writing the workbook
	// THEN: It opens back with a header row plus one row per request

	now := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	requests := []*benefit.Request{
		{
			ID: "req-000001", Type: benefit.TypeMedical, Status: benefit.StatusCompleted,
			RequesterName: "Jon Ruiz", RequesterDepartment: "Platform",
			SubmittedAmount: decimal.NewFromInt(5000),
			Financials: benefit.Financials{
				Gross: decimal.RequireFromString("5350"),
				Net:   decimal.RequireFromString("5200"),
			},
			Cycle: 1, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "req-000002", Type: benefit.TypeTraining, Status: benefit.StatusPendingHR,
			RequesterName: "Ana Silva", RequesterDepartment: "Sales",
			SubmittedAmount: decimal.NewFromInt(10000),
			Cycle:           1, CreatedAt: now, UpdatedAt: now,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, requests))

	rows := readRows(t, &buf)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "req-000001", rows[1][0])
	assert.Equal(t, "5200.00", rows[1][9])
	assert.Equal(t, "training", rows[2][1])
}

func TestWriteReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, nil))

	rows := readRows(t, &buf)
	require.Len(t, rows, 1, "header only")
}
