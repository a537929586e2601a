package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// collect drains a record sequence, stopping at the first error.
func collect(t *testing.T, src Source) ([]Record, error) {
	t.Helper()
	var out []Record
	for rec, err := range Records(src) {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func source(name, body string) Source {
	return Source{Name: name, Reader: strings.NewReader(body)}
}

// ----------------------------------------------------------------------------
// Format resolution
// ----------------------------------------------------------------------------

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatAuto, false},
		{"auto", FormatAuto, false},
		{"JSON", FormatJSON, false},
		{" csv ", FormatCSV, false},
		{"xml", FormatAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecords_FormatResolution(t *testing.T) {
	const csvBody = "id,name\n1,a\n"
	const jsonBody = `[{"id":1,"name":"a"}]`

	tests := []struct {
		name    string
		src     Source
		wantErr bool
	}{
		{"extension json", source("claims.JSON", jsonBody), false},
		{"extension csv", source("claims.csv", csvBody), false},
		{"sniff array", source("upload", "  \n"+jsonBody), false},
		{"sniff csv", source("", csvBody), false},
		{"sniff object", source("", `{"id":1}`), true},
		{"explicit beats extension", Source{Name: "claims.json", Reader: strings.NewReader(csvBody), Format: FormatCSV}, false},
		{"wrong extension", source("claims.json", csvBody), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := collect(t, tt.src)
			if tt.wantErr {
				var fe *FormatError
				if !errors.As(err, &fe) {
					t.Fatalf("error = %v, want *FormatError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(recs) != 1 {
				t.Fatalf("got %d records, want 1", len(recs))
			}
			if got := recs[0].Fields["name"]; got != "a" {
				t.Errorf("name = %v, want a", got)
			}
		})
	}
}

func TestRecords_EmptyInput(t *testing.T) {
	for _, body := range []string{"", "   \n\t", "\ufeff", "\ufeff  \r\n"} {
		for _, name := range []string{"claims.json", "claims.csv", ""} {
			recs, err := collect(t, source(name, body))
			if err != nil {
				t.Errorf("Records(%q, %q) error = %v", name, body, err)
			}
			if len(recs) != 0 {
				t.Errorf("Records(%q, %q) = %d records, want 0", name, body, len(recs))
			}
		}
	}
}

func TestRecords_NilReader(t *testing.T) {
	_, err := collect(t, Source{Name: "claims.csv"})
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FormatError", err)
	}
	if !strings.Contains(fe.Error(), "no data provided") {
		t.Errorf("error = %q", fe.Error())
	}
}

// ----------------------------------------------------------------------------
// JSON
// ----------------------------------------------------------------------------

func TestRecords_JSONKeepsScalarTypes(t *testing.T) {
	body := `[{" ID ":1,"Patient_Name":"Jane","paid_amount":null,"ok":true}]`
	recs, err := collect(t, source("a.json", body))
	if err != nil {
		t.Fatal(err)
	}
	f := recs[0].Fields
	if n, ok := f["id"].(json.Number); !ok || n.String() != "1" {
		t.Errorf("id = %#v, want json.Number 1", f["id"])
	}
	if f["patient_name"] != "Jane" {
		t.Errorf("patient_name = %#v", f["patient_name"])
	}
	if v, ok := f["paid_amount"]; !ok || v != nil {
		t.Errorf("paid_amount = %#v, present %v; want nil present", v, ok)
	}
	if f["ok"] != true {
		t.Errorf("ok = %#v", f["ok"])
	}
	if recs[0].Index != 1 {
		t.Errorf("Index = %d, want 1", recs[0].Index)
	}
}

func TestRecords_JSONErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"not an array", `"claims"`, "top-level JSON array"},
		{"element not object", `[1]`, "element 1 is not an object"},
		{"nested object", `[{"id":1,"x":{"y":2}}]`, "nested value"},
		{"nested array", `[{"id":1,"x":[1]}]`, "nested value"},
		{"malformed", `[{"id":1,}]`, "malformed JSON"},
		{"unterminated", `[{"id":1}`, "unterminated"},
		{"trailing data", `[{"id":1}] []`, "after the top-level array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collect(t, source("x.json", tt.body))
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FormatError", err)
			}
			if !strings.Contains(fe.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to contain %q", fe.Reason, tt.reason)
			}
		})
	}
}

func TestRecords_JSONStopsAtFirstBadElement(t *testing.T) {
	var got []Record
	var gotErr error
	for rec, err := range Records(source("x.json", `[{"id":1},{"id":[2]},{"id":3}]`)) {
		if err != nil {
			gotErr = err
			continue
		}
		got = append(got, rec)
	}
	if len(got) != 1 || gotErr == nil {
		t.Fatalf("got %d records, err %v; want 1 record then an error", len(got), gotErr)
	}
}

// ----------------------------------------------------------------------------
// CSV
// ----------------------------------------------------------------------------

func TestRecords_CSV(t *testing.T) {
	body := "\ufeffID , Patient_Name,billed_amount\r\n" +
		"1,=\"Jane\",\"$1,000.00\"\r\n" +
		" , , \r\n" +
		"2,Joe,5\r\n"

	recs, err := collect(t, source("claims.csv", body))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2 (blank row skipped)", len(recs))
	}
	first := recs[0]
	if first.Fields["id"] != "1" || first.Fields["patient_name"] != "Jane" || first.Fields["billed_amount"] != "$1,000.00" {
		t.Errorf("first record = %#v", first.Fields)
	}
	if first.Line != 2 {
		t.Errorf("first.Line = %d, want 2", first.Line)
	}
	if recs[1].Index != 2 || recs[1].Line != 4 {
		t.Errorf("second record index/line = %d/%d, want 2/4", recs[1].Index, recs[1].Line)
	}
}

func TestRecords_CSVErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"empty header", "id,,name\n1,2,3\n", "empty header"},
		{"duplicate header", "id,ID\n1,2\n", "duplicate column"},
		{"short row", "id,name\n1\n", "malformed row"},
		{"bare quote", "id,name\n1,a\"b\n", "malformed row"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collect(t, source("x.csv", tt.body))
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FormatError", err)
			}
			if !strings.Contains(fe.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to contain %q", fe.Reason, tt.reason)
			}
		})
	}
}

func TestRecords_InvalidUTF8IsReplaced(t *testing.T) {
	recs, err := collect(t, source("x.csv", "id,name\n1,caf\xe9\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := recs[0].Fields["name"]; got != "caf\ufffd" {
		t.Errorf("name = %q, want replacement character", got)
	}
}

// ----------------------------------------------------------------------------
// Typed decoding
// ----------------------------------------------------------------------------

func TestDecodeClaimRecord(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{
			"id":             json.Number("7"),
			"patient_name":   "Jane Doe",
			"billed_amount":  json.Number("500.00"),
			"paid_amount":    json.Number("0"),
			"status":         "Denied",
			"insurer_name":   "Acme",
			"discharge_date": "2024-01-01",
		}
	}

	t.Run("valid", func(t *testing.T) {
		got, err := DecodeClaimRecord(Record{Index: 1, Fields: valid()})
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != 7 || got.Status != "Denied" || got.BilledAmount.StringFixed(2) != "500.00" {
			t.Errorf("got %+v", got)
		}
		if got.DischargeDate.Format("2006-01-02") != "2024-01-01" {
			t.Errorf("discharge = %v", got.DischargeDate)
		}
	})

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		field   string
		wantErr bool
		check   func(t *testing.T, r ClaimImportRecord)
	}{
		{
			name:   "null paid defaults to zero",
			mutate: func(m map[string]any) { m["paid_amount"] = nil },
			check: func(t *testing.T, r ClaimImportRecord) {
				if !r.PaidAmount.IsZero() {
					t.Errorf("paid = %s", r.PaidAmount)
				}
			},
		},
		{
			name:   "empty status defaults to Pending",
			mutate: func(m map[string]any) { m["status"] = "" },
			check: func(t *testing.T, r ClaimImportRecord) {
				if r.Status != DefaultStatus {
					t.Errorf("status = %q", r.Status)
				}
			},
		},
		{
			name:   "integral decimal id",
			mutate: func(m map[string]any) { m["id"] = json.Number("7.0") },
			check: func(t *testing.T, r ClaimImportRecord) {
				if r.ID != 7 {
					t.Errorf("id = %d", r.ID)
				}
			},
		},
		{
			name:   "string id",
			mutate: func(m map[string]any) { m["id"] = " 12 " },
			check: func(t *testing.T, r ClaimImportRecord) {
				if r.ID != 12 {
					t.Errorf("id = %d", r.ID)
				}
			},
		},
		{name: "missing id", mutate: func(m map[string]any) { delete(m, "id") }, field: "id", wantErr: true},
		{name: "fractional id", mutate: func(m map[string]any) { m["id"] = json.Number("1.5") }, field: "id", wantErr: true},
		{name: "bool id", mutate: func(m map[string]any) { m["id"] = true }, field: "id", wantErr: true},
		{name: "blank patient", mutate: func(m map[string]any) { m["patient_name"] = "  " }, field: "patient_name", wantErr: true},
		{name: "missing paid key", mutate: func(m map[string]any) { delete(m, "paid_amount") }, field: "paid_amount", wantErr: true},
		{name: "missing status key", mutate: func(m map[string]any) { delete(m, "status") }, field: "status", wantErr: true},
		{name: "bad amount", mutate: func(m map[string]any) { m["billed_amount"] = "lots" }, field: "billed_amount", wantErr: true},
		{name: "numeric date", mutate: func(m map[string]any) { m["discharge_date"] = json.Number("20240101") }, field: "discharge_date", wantErr: true},
		{name: "bad date", mutate: func(m map[string]any) { m["discharge_date"] = "yesterday" }, field: "discharge_date", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := valid()
			tt.mutate(fields)
			got, err := DecodeClaimRecord(Record{Index: 3, Fields: fields})
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				tt.check(t, got)
				return
			}
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if ve.Field != tt.field || ve.Record != 3 {
				t.Errorf("error field/record = %q/%d, want %q/3", ve.Field, ve.Record, tt.field)
			}
		})
	}
}

func TestDecodeDetailRecord(t *testing.T) {
	got, err := DecodeDetailRecord(Record{Index: 1, Fields: map[string]any{
		"claim_id":      "4",
		"denial_reason": "",
		"cpt_codes":     " 99213 , ,85025 ",
	}})
	if err != nil {
		t.Fatal(err)
	}
	if got.DetailID != "unknown" || got.ClaimID != 4 || got.CPTCodes != "99213,85025" {
		t.Errorf("got %+v", got)
	}

	got, err = DecodeDetailRecord(Record{Index: 2, Fields: map[string]any{
		"id":            json.Number("31"),
		"claim_id":      json.Number("4"),
		"denial_reason": "Expired",
		"cpt_codes":     "",
	}})
	if err != nil {
		t.Fatal(err)
	}
	if got.DetailID != "31" || got.Detail().DenialReason != "Expired" {
		t.Errorf("got %+v", got)
	}

	_, err = DecodeDetailRecord(Record{Index: 5, Fields: map[string]any{"claim_id": "4", "cpt_codes": ""}})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Field != "denial_reason" {
		t.Errorf("error = %v, want missing denial_reason", err)
	}
}

func TestClaimRecords_ContinuesPastValidationErrors(t *testing.T) {
	body := "id,patient_name,billed_amount,paid_amount,status,insurer_name,discharge_date\n" +
		"1,Jane,100,0,,Acme,2024-01-01\n" +
		"x,Joe,100,0,,Acme,2024-01-01\n" +
		"3,Ann,100,0,,Acme,2024-01-01\n"

	var ids []int64
	var errs int
	for rec, err := range ClaimRecords(source("c.csv", body)) {
		if err != nil {
			errs++
			continue
		}
		ids = append(ids, rec.ID)
	}
	if errs != 1 || len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("ids = %v, errs = %d; want [1 3] and 1 error", ids, errs)
	}
}
