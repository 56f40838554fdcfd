package domain

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoanGrade is the pricing bucket assigned from a probability of default.
type LoanGrade string

const (
	GradeA      LoanGrade = "A"
	GradeB      LoanGrade = "B"
	GradeC      LoanGrade = "C"
	GradeD      LoanGrade = "D"
	GradeE      LoanGrade = "E"
	GradeF      LoanGrade = "F"
	GradeReject LoanGrade = "REJECT"
)

var termDigits = regexp.MustCompile(`\d+`)

// TermMonths is a loan term in months. Upstream data is messy: the term
// arrives as "36 months", "36", a bare number, or not at all, so it
// unmarshals tolerantly. Zero means unknown (callers apply a default).
type TermMonths int

// UnmarshalJSON accepts a JSON number, a numeric string, or a string
// containing a number ("60 months"). Anything else parses as zero.
func (t *TermMonths) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*t = 0
		return nil
	}
	if s != "" && s[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		if m := termDigits.FindString(raw); m != "" {
			n, err := strconv.Atoi(m)
			if err == nil {
				*t = TermMonths(n)
				return nil
			}
		}
		*t = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		*t = 0
		return nil
	}
	*t = TermMonths(int(f))
	return nil
}

// OrDefault returns the term, or def when the term is unknown.
func (t TermMonths) OrDefault(def int) int {
	if t <= 0 {
		return def
	}
	return int(t)
}

// LoanApplication carries the borrower attributes submitted for scoring.
// All fields are optional; the scorer treats missing values as neutral.
type LoanApplication struct {
	LoanAmnt           *float64   `json:"loan_amnt,omitempty"`
	Term               TermMonths `json:"term,omitempty"`
	IntRate            *float64   `json:"int_rate,omitempty"`
	Installment        *float64   `json:"installment,omitempty"`
	EmpLength          *string    `json:"emp_length,omitempty"`
	HomeOwnership      *string    `json:"home_ownership,omitempty"`
	AnnualInc          *float64   `json:"annual_inc,omitempty"`
	VerificationStatus *string    `json:"verification_status,omitempty"`
	Purpose            *string    `json:"purpose,omitempty"`
	ZipCode            *string    `json:"zip_code,omitempty"`
	AddrState          *string    `json:"addr_state,omitempty"`
	DTI                *float64   `json:"dti,omitempty"`
	Delinq2Yrs         *int       `json:"delinq_2yrs,omitempty"`
	FicoRangeLow       *int       `json:"fico_range_low,omitempty"`
	FicoRangeHigh      *int       `json:"fico_range_high,omitempty"`
	InqLast6Mths       *int       `json:"inq_last_6mths,omitempty"`
	OpenAcc            *int       `json:"open_acc,omitempty"`
	PubRec             *int       `json:"pub_rec,omitempty"`
	RevolBal           *float64   `json:"revol_bal,omitempty"`
	RevolUtil          *float64   `json:"revol_util,omitempty"`
	TotalAcc           *int       `json:"total_acc,omitempty"`
}

// FicoMid returns the midpoint of the FICO range, or 0 when unknown.
func (a *LoanApplication) FicoMid() float64 {
	switch {
	case a.FicoRangeLow != nil && a.FicoRangeHigh != nil:
		return float64(*a.FicoRangeLow+*a.FicoRangeHigh) / 2
	case a.FicoRangeLow != nil:
		return float64(*a.FicoRangeLow)
	case a.FicoRangeHigh != nil:
		return float64(*a.FicoRangeHigh)
	}
	return 0
}

// ScoredLoan is a priced loan offer: the application plus the model's
// probability of default and the terms derived from it. Offers with grade
// REJECT carry no APR and are not investable.
type ScoredLoan struct {
	ID uuid.UUID `json:"id"`
	LoanApplication

	PD                  float64   `json:"pd"`
	Grade               LoanGrade `json:"grade"`
	APR                 *float64  `json:"apr,omitempty"`
	OriginationFee      *float64  `json:"origination_fee,omitempty"`
	MonthlyPayment      *float64  `json:"monthly_payment,omitempty"`
	ExpectedInvestorAPY *float64  `json:"expected_investor_apy,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Investable reports whether the offer can enter a portfolio.
func (s *ScoredLoan) Investable() bool {
	return s.Grade != GradeReject && s.APR != nil && s.ExpectedInvestorAPY != nil
}

// State returns the borrower state, or "UNK" when missing. Used for
// portfolio concentration caps.
func (s *ScoredLoan) State() string {
	if s.AddrState == nil || *s.AddrState == "" {
		return "UNK"
	}
	return *s.AddrState
}
