package core

import (
	"iter"
	"time"

	"github.com/shopspring/decimal"
)

// Field rules for claim records.
var claimFields = struct {
	ID, PatientName, Billed, Paid, Status, Insurer, Discharge FieldSpec
}{
	ID:          FieldSpec{Name: "id", Type: FieldInt, Required: true},
	PatientName: FieldSpec{Name: "patient_name", Type: FieldText, Required: true},
	Billed:      FieldSpec{Name: "billed_amount", Type: FieldAmount, Required: true},
	Paid:        FieldSpec{Name: "paid_amount", Type: FieldAmount, Required: true, AllowEmpty: true},
	Status:      FieldSpec{Name: "status", Type: FieldText, Required: true, AllowEmpty: true},
	Insurer:     FieldSpec{Name: "insurer_name", Type: FieldText, Required: true},
	Discharge:   FieldSpec{Name: "discharge_date", Type: FieldDate, Required: true},
}

// Field rules for detail records. The detail's own id is optional and only
// used in messages.
var detailFields = struct {
	ID, ClaimID, DenialReason, CPTCodes FieldSpec
}{
	ID:           FieldSpec{Name: "id", Type: FieldText, AllowEmpty: true},
	ClaimID:      FieldSpec{Name: "claim_id", Type: FieldInt, Required: true},
	DenialReason: FieldSpec{Name: "denial_reason", Type: FieldText, Required: true, AllowEmpty: true},
	CPTCodes:     FieldSpec{Name: "cpt_codes", Type: FieldCodes, Required: true, AllowEmpty: true},
}

// ClaimImportRecord is a fully validated claim record.
type ClaimImportRecord struct {
	Index         int
	ID            int64
	PatientName   string
	BilledAmount  decimal.Decimal
	PaidAmount    decimal.Decimal
	Status        string
	InsurerName   string
	DischargeDate time.Time
}

// Claim returns the record as a new, unflagged claim.
func (r ClaimImportRecord) Claim() Claim {
	return Claim{
		ID:            r.ID,
		PatientName:   r.PatientName,
		BilledAmount:  r.BilledAmount,
		PaidAmount:    r.PaidAmount,
		Status:        r.Status,
		InsurerName:   r.InsurerName,
		DischargeDate: r.DischargeDate,
	}
}

// DetailImportRecord is a fully validated detail record.
type DetailImportRecord struct {
	Index        int
	DetailID     string // "unknown" when absent
	ClaimID      int64
	DenialReason string
	CPTCodes     string
}

// Detail returns the record as a claim detail.
func (r DetailImportRecord) Detail() ClaimDetail {
	return ClaimDetail{ClaimID: r.ClaimID, DenialReason: r.DenialReason, CPTCodes: r.CPTCodes}
}

// DecodeClaimRecord validates r as a claim. The error, if any, is a
// ValidationError for the first failing field.
func DecodeClaimRecord(r Record) (ClaimImportRecord, error) {
	out := ClaimImportRecord{Index: r.Index}
	f := claimFields

	raw, err := fieldText(r, f.ID)
	if err != nil {
		return out, err
	}
	if out.ID, err = ParseID(raw); err != nil {
		return out, fieldError(r, f.ID, raw, err)
	}

	if out.PatientName, err = fieldText(r, f.PatientName); err != nil {
		return out, err
	}

	if raw, err = fieldText(r, f.Billed); err != nil {
		return out, err
	}
	if out.BilledAmount, err = ParseAmount(raw); err != nil {
		return out, fieldError(r, f.Billed, raw, err)
	}

	if raw, err = fieldText(r, f.Paid); err != nil {
		return out, err
	}
	out.PaidAmount = decimal.Zero
	if raw != "" {
		if out.PaidAmount, err = ParseAmount(raw); err != nil {
			return out, fieldError(r, f.Paid, raw, err)
		}
	}

	if out.Status, err = fieldText(r, f.Status); err != nil {
		return out, err
	}
	if out.Status == "" {
		out.Status = DefaultStatus
	}

	if out.InsurerName, err = fieldText(r, f.Insurer); err != nil {
		return out, err
	}

	if raw, err = fieldText(r, f.Discharge); err != nil {
		return out, err
	}
	if out.DischargeDate, err = ParseDate(raw); err != nil {
		return out, fieldError(r, f.Discharge, raw, err)
	}

	return out, nil
}

// DecodeDetailRecord validates r as a claim detail.
func DecodeDetailRecord(r Record) (DetailImportRecord, error) {
	out := DetailImportRecord{Index: r.Index, DetailID: "unknown"}
	f := detailFields

	if id, _ := fieldText(r, f.ID); id != "" {
		out.DetailID = id
	}

	raw, err := fieldText(r, f.ClaimID)
	if err != nil {
		return out, err
	}
	if out.ClaimID, err = ParseID(raw); err != nil {
		return out, fieldError(r, f.ClaimID, raw, err)
	}

	if out.DenialReason, err = fieldText(r, f.DenialReason); err != nil {
		return out, err
	}

	if raw, err = fieldText(r, f.CPTCodes); err != nil {
		return out, err
	}
	out.CPTCodes = NormalizeCPTCodes(raw)

	return out, nil
}

// ClaimRecords yields validated claim records from src. ValidationErrors
// are yielded per record and the sequence continues; a *FormatError ends
// it.
func ClaimRecords(src Source) iter.Seq2[ClaimImportRecord, error] {
	return decodeRecords(src, DecodeClaimRecord)
}

// DetailRecords yields validated detail records from src.
func DetailRecords(src Source) iter.Seq2[DetailImportRecord, error] {
	return decodeRecords(src, DecodeDetailRecord)
}

func decodeRecords[T any](src Source, decode func(Record) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for rec, err := range Records(src) {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(decode(rec)) {
				return
			}
		}
	}
}
