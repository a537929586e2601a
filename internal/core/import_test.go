package core_test

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/store/gormstore"
)

const claimsJSON = `[
  {"id": 1, "patient_name": "Jane Doe", "billed_amount": 500.00, "paid_amount": 0, "status": "Pending", "insurer_name": "Acme", "discharge_date": "2024-01-01"},
  {"id": 2, "patient_name": "John Roe", "billed_amount": "1,200.50", "paid_amount": 200.5, "status": "Denied", "insurer_name": "Globex", "discharge_date": "2024-02-10"},
  {"id": 3, "patient_name": "Ann Poe", "billed_amount": 80, "paid_amount": null, "status": "", "insurer_name": "Initech", "discharge_date": "2024-03-05"}
]`

const claimsCSV = `id,patient_name,billed_amount,paid_amount,status,insurer_name,discharge_date
1,Jane Doe,500.00,0,Pending,Acme,2024-01-01
2,John Roe,"1,200.50",200.5,Denied,Globex,2024-02-10
3,Ann Poe,80,,,Initech,2024-03-05
`

const detailsJSON = `[
  {"id": 11, "claim_id": 1, "denial_reason": "", "cpt_codes": "99213"},
  {"id": 12, "claim_id": 2, "denial_reason": "Not covered", "cpt_codes": "99214, 85025"},
  {"id": 13, "claim_id": 3, "denial_reason": "Duplicate", "cpt_codes": ""}
]`

const detailsCSV = `id,claim_id,denial_reason,cpt_codes
11,1,,99213
12,2,Not covered,"99214, 85025"
13,3,Duplicate,
`

type recordingObserver struct {
	mu      sync.Mutex
	reports []*core.ImportReport
	errs    []error
}

func (o *recordingObserver) ImportFinished(r *core.ImportReport, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, r)
	o.errs = append(o.errs, err)
}

func newTestService(t *testing.T, opts core.Options) (*core.Service, core.Store) {
	t.Helper()
	store, err := gormstore.OpenSQLite(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return core.NewService(store, opts), store
}

func src(name, body string) core.Source {
	return core.Source{Name: name, Reader: strings.NewReader(body)}
}

func runImport(t *testing.T, svc *core.Service, mode core.ImportMode, claims, details core.Source) *core.ImportReport {
	t.Helper()
	report, err := svc.Import(context.Background(), core.ImportRequest{Claims: claims, Details: details, Mode: mode})
	require.NoError(t, err)
	require.True(t, report.Committed)
	return report
}

// snapshot captures every claim with its detail, keyed by id.
func snapshot(t *testing.T, store core.Store) map[int64]string {
	t.Helper()
	claims, err := store.ListClaims(context.Background(), core.ClaimFilter{}, 1000, 0)
	require.NoError(t, err)
	out := make(map[int64]string, len(claims))
	for _, c := range claims {
		line := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%t",
			c.PatientName, c.BilledAmount.StringFixed(2), c.PaidAmount.StringFixed(2),
			c.Status, c.InsurerName, c.DischargeDate.Format(time.DateOnly), c.Flagged)
		if c.Detail != nil {
			line += fmt.Sprintf("|%s|%s", c.Detail.DenialReason, c.Detail.CPTCodes)
		}
		out[c.ID] = line
	}
	return out
}

// ----------------------------------------------------------------------------
// Worked examples
// ----------------------------------------------------------------------------

func TestImport_SingleClaimOverwrite(t *testing.T) {
	svc, store := newTestService(t, core.Options{})
	body := `[{"id":1,"patient_name":"Jane Doe","billed_amount":500.00,"paid_amount":0,"status":"Pending","insurer_name":"Acme","discharge_date":"2024-01-01"}]`

	report := runImport(t, svc, core.ModeOverwrite, src("claims.json", body), src("details.json", "[]"))
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, int64(len(body)+2), report.BytesRead)

	n, err := store.CountClaims(context.Background(), core.ClaimFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	c, err := store.GetClaim(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", c.PatientName)
	assert.Equal(t, "500.00", c.BilledAmount.StringFixed(2))
	assert.True(t, c.PaidAmount.IsZero())
	assert.Equal(t, "Pending", c.Status)
	assert.Equal(t, "Acme", c.InsurerName)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), c.DischargeDate)
	assert.False(t, c.Flagged)
	assert.Nil(t, c.Detail)
}

func TestImport_AppendUpdatesInPlaceAndKeepsFlag(t *testing.T) {
	svc, store := newTestService(t, core.Options{})
	ctx := context.Background()
	first := `[{"id":1,"patient_name":"Jane Doe","billed_amount":500.00,"paid_amount":0,"status":"Pending","insurer_name":"Acme","discharge_date":"2024-01-01"}]`
	second := strings.Replace(first, `"paid_amount":0`, `"paid_amount":250.00`, 1)

	runImport(t, svc, core.ModeOverwrite, src("c.json", first), src("d.json", ""))
	_, err := svc.ToggleFlag(ctx, 1)
	require.NoError(t, err)

	report := runImport(t, svc, core.ModeAppend, src("c.json", second), src("d.json", ""))
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Contains(t, report.String(), "Updated claim 1")

	n, err := store.CountClaims(ctx, core.ClaimFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	c, err := store.GetClaim(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "250.00", c.PaidAmount.StringFixed(2))
	assert.True(t, c.Flagged, "re-import must not reset the flag")
}

// ----------------------------------------------------------------------------
// Properties
// ----------------------------------------------------------------------------

func TestImport_AppendIsIdempotent(t *testing.T) {
	svc, store := newTestService(t, core.Options{})

	runImport(t, svc, core.ModeAppend, src("c.json", claimsJSON), src("d.json", detailsJSON))
	before := snapshot(t, store)

	report := runImport(t, svc, core.ModeAppend, src("c.json", claimsJSON), src("d.json", detailsJSON))
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 3, report.Updated)
	assert.Equal(t, before, snapshot(t, store))
}

func TestImport_OverwriteWithEmptyClaimsFile(t *testing.T) {
	for _, body := range []string{"", "[]", "id,patient_name\n"} {
		t.Run(fmt.Sprintf("%q", body), func(t *testing.T) {
			svc, store := newTestService(t, core.Options{})
			ctx := context.Background()
			runImport(t, svc, core.ModeAppend, src("c.json", claimsJSON), src("d.json", detailsJSON))
			_, err := svc.AddNote(ctx, 1, nil, "follow up")
			require.NoError(t, err)

			report := runImport(t, svc, core.ModeOverwrite, src("claims", body), src("details", ""))
			assert.Equal(t, core.WipeCounts{Claims: 3, Details: 3, Notes: 1}, report.Wiped)
			assert.Equal(t, core.EntryWiped, report.Entries[0].Kind)

			n, err := store.CountClaims(ctx, core.ClaimFilter{})
			require.NoError(t, err)
			assert.Zero(t, n)
			notes, err := store.ListNotes(ctx, 1)
			require.NoError(t, err)
			assert.Empty(t, notes)
		})
	}
}

func TestImport_DetailOrderDoesNotMatter(t *testing.T) {
	lines := []string{
		`{"id": 11, "claim_id": 1, "denial_reason": "", "cpt_codes": "99213"}`,
		`{"id": 12, "claim_id": 2, "denial_reason": "Not covered", "cpt_codes": "99214,85025"}`,
		`{"id": 13, "claim_id": 3, "denial_reason": "Duplicate", "cpt_codes": ""}`,
		`{"id": 14, "claim_id": 99, "denial_reason": "Orphan", "cpt_codes": "1"}`,
	}

	var want map[int64]string
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range 5 {
		rng.Shuffle(len(lines), func(a, b int) { lines[a], lines[b] = lines[b], lines[a] })
		details := "[" + strings.Join(lines, ",") + "]"

		svc, store := newTestService(t, core.Options{})
		runImport(t, svc, core.ModeOverwrite, src("c.json", claimsJSON), src("d.json", details))
		got := snapshot(t, store)
		if i == 0 {
			want = got
			continue
		}
		assert.Equal(t, want, got, "permutation %d", i)
	}
}

func TestImport_MissingParentSkipsOneDetail(t *testing.T) {
	svc, store := newTestService(t, core.Options{})
	details := strings.Replace(detailsJSON, `"claim_id": 3`, `"claim_id": 404`, 1)

	report := runImport(t, svc, core.ModeOverwrite, src("c.json", claimsJSON), src("d.json", details))
	assert.Equal(t, 2, report.Linked)
	assert.Equal(t, 1, report.MissingParents)

	warnings := report.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, core.EntryMissingParent, warnings[0].Kind)
	assert.Equal(t, "Skipping detail 13 - claim missing", warnings[0].Message)

	linked := 0
	for _, line := range snapshot(t, store) {
		if strings.Count(line, "|") > 6 {
			linked++
		}
	}
	assert.Equal(t, 2, linked)
}

func TestImport_MissingParentWithoutDetailID(t *testing.T) {
	svc, _ := newTestService(t, core.Options{})
	report := runImport(t, svc, core.ModeOverwrite,
		src("c.json", claimsJSON),
		src("d.csv", "claim_id,denial_reason,cpt_codes\n404,,\n"))
	require.Len(t, report.Warnings(), 1)
	assert.Equal(t, "Skipping detail unknown - claim missing", report.Warnings()[0].Message)
}

func TestImport_JSONAndCSVAreEquivalent(t *testing.T) {
	svcJSON, storeJSON := newTestService(t, core.Options{})
	runImport(t, svcJSON, core.ModeOverwrite, src("c.json", claimsJSON), src("d.json", detailsJSON))

	svcCSV, storeCSV := newTestService(t, core.Options{})
	runImport(t, svcCSV, core.ModeOverwrite, src("c.csv", claimsCSV), src("d.csv", detailsCSV))

	assert.Equal(t, snapshot(t, storeJSON), snapshot(t, storeCSV))
}

func TestImport_JSONAndCSVKeepQuotesAndLeadingEquals(t *testing.T) {
	claims := `[
  {"id": 7, "patient_name": "'Quinn'", "billed_amount": "1.5e2", "paid_amount": 0, "status": "=N/A", "insurer_name": "Acme \"Gold\"", "discharge_date": "2024-05-01"}
]`
	details := `[{"id": 70, "claim_id": 7, "denial_reason": "Payer's'", "cpt_codes": "99213"}]`

	claimsCSV := "id,patient_name,billed_amount,paid_amount,status,insurer_name,discharge_date\n" +
		`7,'Quinn',1.5e2,0,=N/A,"Acme ""Gold""",2024-05-01` + "\n"
	detailsCSV := "id,claim_id,denial_reason,cpt_codes\n70,7,Payer's',99213\n"

	svcJSON, storeJSON := newTestService(t, core.Options{})
	runImport(t, svcJSON, core.ModeOverwrite, src("c.json", claims), src("d.json", details))

	svcCSV, storeCSV := newTestService(t, core.Options{})
	runImport(t, svcCSV, core.ModeOverwrite, src("c.csv", claimsCSV), src("d.csv", detailsCSV))

	want := map[int64]string{7: `'Quinn'|150.00|0.00|=N/A|Acme "Gold"|2024-05-01|false|Payer's'|99213`}
	assert.Equal(t, want, snapshot(t, storeJSON))
	assert.Equal(t, want, snapshot(t, storeCSV))
}

func TestImport_HugeExponentIsAValidationError(t *testing.T) {
	svc, store := newTestService(t, core.Options{})
	body := "id,patient_name,billed_amount,paid_amount,status,insurer_name,discharge_date\n" +
		"1,Jane,1e900000000,0,Paid,Acme,2024-01-01\n"

	done := make(chan struct{})
	var report *core.ImportReport
	var err error
	go func() {
		defer close(done)
		report, err = svc.Import(context.Background(), core.ImportRequest{
			Claims:  src("c.csv", body),
			Details: src("d.csv", ""),
			Mode:    core.ModeOverwrite,
			Policy:  core.PolicyAtomic,
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("import did not return")
	}

	var verr core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "billed_amount", verr.Field)
	require.NotNil(t, report)
	assert.False(t, report.Committed)

	n, err := store.CountClaims(context.Background(), core.ClaimFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImport_ReportOrderAndSummary(t *testing.T) {
	svc, _ := newTestService(t, core.Options{})
	report := runImport(t, svc, core.ModeOverwrite, src("c.json", claimsJSON), src("d.json", detailsJSON))

	var messages []string
	for _, e := range report.Entries {
		messages = append(messages, e.Message)
	}
	assert.Equal(t, []string{
		"All existing claims and details deleted (overwrite mode).",
		"Created claim 1",
		"Created claim 2",
		"Created claim 3",
		"Linked details for claim 1",
		"Linked details for claim 2",
		"Linked details for claim 3",
	}, messages)
	assert.Equal(t, "Data import complete. 3 created, 0 updated, 3 details linked, 0 skipped.", report.Summary())
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, core.PolicyAtomic, report.Policy)
}

// ----------------------------------------------------------------------------
// Failure policies
// ----------------------------------------------------------------------------

const badClaimsJSON = `[
  {"id": 5, "patient_name": "Good", "billed_amount": 10, "paid_amount": 0, "status": "", "insurer_name": "Acme", "discharge_date": "2024-01-01"},
  {"id": 6, "patient_name": "", "billed_amount": 10, "paid_amount": 0, "status": "", "insurer_name": "Acme", "discharge_date": "2024-01-01"}
]`

func TestImport_AtomicRollsBackEverything(t *testing.T) {
	svc, store := newTestService(t, core.Options{})
	runImport(t, svc, core.ModeAppend, src("c.json", claimsJSON), src("d.json", detailsJSON))
	before := snapshot(t, store)

	report, err := svc.Import(context.Background(), core.ImportRequest{
		Claims:  src("c.json", badClaimsJSON),
		Details: src("d.json", ""),
		Mode:    core.ModeOverwrite,
	})
	require.Error(t, err)
	var ve core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 2, ve.Record)
	assert.Equal(t, "patient_name", ve.Field)

	require.NotNil(t, report)
	assert.False(t, report.Committed)
	assert.Contains(t, report.Summary(), "Import aborted, no changes applied")
	assert.Equal(t, before, snapshot(t, store), "overwrite must not be half applied")
}

func TestImport_BestEffortSkipsBadRecords(t *testing.T) {
	svc, store := newTestService(t, core.Options{DefaultPolicy: core.PolicyBestEffort})

	details := `[{"claim_id": 5, "denial_reason": "x", "cpt_codes": "1"}, {"claim_id": "five", "denial_reason": "", "cpt_codes": ""}]`
	report := runImport(t, svc, core.ModeOverwrite, src("c.json", badClaimsJSON), src("d.json", details))

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.SkippedClaims)
	assert.Equal(t, 1, report.SkippedDetails)
	assert.Equal(t, 1, report.Linked)

	warnings := report.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, "Skipping claim record #2: patient_name: required field is empty", warnings[0].Message)
	assert.True(t, strings.HasPrefix(warnings[1].Message, "Skipping detail record #2: claim_id"))
	assert.Equal(t, "Data import complete. 1 created, 0 updated, 1 details linked, 2 skipped.", report.Summary())

	_, err := store.GetClaim(context.Background(), 6)
	assert.True(t, core.IsNotFound(err))
}

func TestImport_FormatErrorAbortsUnderAnyPolicy(t *testing.T) {
	for _, policy := range []core.ImportPolicy{core.PolicyAtomic, core.PolicyBestEffort} {
		t.Run(string(policy), func(t *testing.T) {
			svc, store := newTestService(t, core.Options{})
			runImport(t, svc, core.ModeAppend, src("c.json", claimsJSON), src("d.json", ""))

			report, err := svc.Import(context.Background(), core.ImportRequest{
				Claims:  src("c.json", claimsJSON),
				Details: src("d.json", `{"not": "an array"}`),
				Mode:    core.ModeOverwrite,
				Policy:  policy,
			})
			var fe *core.FormatError
			require.ErrorAs(t, err, &fe)
			assert.False(t, report.Committed)

			n, err := store.CountClaims(context.Background(), core.ClaimFilter{})
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)
		})
	}
}

func TestImport_RejectsUnknownMode(t *testing.T) {
	svc, _ := newTestService(t, core.Options{})
	report, err := svc.Import(context.Background(), core.ImportRequest{
		Claims: src("c.json", claimsJSON),
		Mode:   "merge",
	})
	assert.Nil(t, report)
	var ve core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "mode", ve.Field)
}

func TestImport_CanceledContextRollsBack(t *testing.T) {
	svc, store := newTestService(t, core.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Import(ctx, core.ImportRequest{Claims: src("c.json", claimsJSON), Details: src("d.json", "")})
	require.Error(t, err)

	n, err := store.CountClaims(context.Background(), core.ClaimFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ----------------------------------------------------------------------------
// Concurrency, observers, caches
// ----------------------------------------------------------------------------

func TestImport_SecondImportIsRejectedWhileBusy(t *testing.T) {
	svc, _ := newTestService(t, core.Options{ImportMaxWait: 50 * time.Millisecond})

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := svc.Import(context.Background(), core.ImportRequest{
			Claims:  core.Source{Name: "c.json", Reader: pr},
			Details: src("d.json", ""),
		})
		done <- err
	}()

	require.Eventually(t, func() bool { return svc.ImportStatus().Running }, time.Second, 5*time.Millisecond)

	_, err := svc.Import(context.Background(), core.ImportRequest{Claims: src("c.json", "[]"), Details: src("d.json", "")})
	assert.ErrorIs(t, err, core.ErrImportBusy)

	_, _ = io.WriteString(pw, claimsJSON)
	require.NoError(t, pw.Close())
	require.NoError(t, <-done)
	assert.False(t, svc.ImportStatus().Running)
}

func TestImport_NotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	svc, _ := newTestService(t, core.Options{Observer: obs})

	runImport(t, svc, core.ModeOverwrite, src("c.json", claimsJSON), src("d.json", ""))
	_, err := svc.Import(context.Background(), core.ImportRequest{Claims: src("c.json", "{"), Details: src("d.json", "")})
	require.Error(t, err)

	require.Len(t, obs.reports, 2)
	assert.True(t, obs.reports[0].Committed)
	assert.NoError(t, obs.errs[0])
	assert.False(t, obs.reports[1].Committed)
	assert.Error(t, obs.errs[1])
}

func TestImport_InvalidatesDashboardStats(t *testing.T) {
	svc, _ := newTestService(t, core.Options{StatsTTL: time.Hour})
	ctx := context.Background()

	stats, err := svc.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalClaims)

	runImport(t, svc, core.ModeOverwrite, src("c.json", claimsJSON), src("d.json", ""))

	stats, err = svc.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalClaims)
	// (500-0 + 1200.50-200.50 + 80-0) / 3
	assert.Equal(t, "526.67", stats.AvgUnderpayment.StringFixed(2))
}
