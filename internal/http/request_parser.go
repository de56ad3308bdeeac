// This file implements parsing and validation of request bodies, path
// values and query strings.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"kharcha/internal/core"
	"kharcha/internal/services"
)

const maxBodyBytes = 1 << 20

// badRequest marks err as the caller's fault so it maps to a 400.
func badRequest(err error) error {
	return &services.ValidationError{Err: err}
}

// decodeJSON reads exactly one JSON object into dst. Unknown fields are
// rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decode(w, r, dst, false)
}

// decodeOptionalJSON is decodeJSON but accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decode(w, r, dst, true)
}

func decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			if optional {
				return nil
			}
			return badRequest(errors.New("request body must not be empty"))
		case errors.As(err, &syntaxErr):
			return badRequest(fmt.Errorf("malformed JSON at offset %d", syntaxErr.Offset))
		case errors.Is(err, io.ErrUnexpectedEOF):
			return badRequest(errors.New("malformed JSON"))
		case errors.As(err, &typeErr):
			return badRequest(fmt.Errorf("invalid value for field %q", typeErr.Field))
		case errors.As(err, &maxErr):
			return badRequest(fmt.Errorf("request body must not exceed %d bytes", maxErr.Limit))
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return badRequest(fmt.Errorf("unknown field %s", strings.TrimPrefix(err.Error(), "json: unknown field ")))
		default:
			return badRequest(err)
		}
	}
	if dec.More() {
		return badRequest(errors.New("request body must contain a single JSON object"))
	}
	return nil
}

// flexString accepts a JSON string or number, so amounts can be sent as
// "1,250.50" or 1250.5.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// pathID parses the {id} path value as a positive integer.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(errors.New("invalid id"))
	}
	return id, nil
}

// parseExpenseFilter reads the category, date_from, date_to and limit query
// parameters. Empty values mean no filter.
func parseExpenseFilter(q url.Values) (core.ExpenseFilter, error) {
	var f core.ExpenseFilter
	if v := strings.TrimSpace(q.Get("category")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, badRequest(errors.New("category must be a category id"))
		}
		f.CategoryID = id
	}
	if v := q.Get("date_from"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, badRequest(errors.New("date_from must be YYYY-MM-DD"))
		}
		f.From = d
	}
	if v := q.Get("date_to"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, badRequest(errors.New("date_to must be YYYY-MM-DD"))
		}
		f.To = d
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return f, badRequest(errors.New("limit must be between 1 and 1000"))
		}
		f.Limit = n
	}
	return f, nil
}

// parseMonths reads ?months=N. Zero means the service default.
func parseMonths(q url.Values) (int, error) {
	v := strings.TrimSpace(q.Get("months"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest(errors.New("months must be a number"))
	}
	return n, nil
}

// parseOptionalMonth parses a YYYY-MM value; empty gives the zero month.
func parseOptionalMonth(s string) (core.Month, error) {
	if strings.TrimSpace(s) == "" {
		return core.Month{}, nil
	}
	m, err := core.ParseMonth(s)
	if err != nil {
		return core.Month{}, badRequest(err)
	}
	return m, nil
}

// expenseRequest is the body of expense create and update calls.
type expenseRequest struct {
	CategoryID  int64      `json:"category_id"`
	Amount      flexString `json:"amount"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
}

// toExpense converts the request. A missing date means today.
func (req expenseRequest) toExpense() (core.Expense, error) {
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.Expense{}, badRequest(errors.New("amount must be a positive rupee value with at most two decimals"))
	}
	date := core.Today()
	if strings.TrimSpace(req.Date) != "" {
		if date, err = core.ParseDate(req.Date); err != nil {
			return core.Expense{}, badRequest(errors.New("date must be YYYY-MM-DD"))
		}
	}
	return core.Expense{
		CategoryID:  req.CategoryID,
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Date:        date,
	}, nil
}

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Aadhar      string `json:"aadhar"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth"`
}

func (req registerRequest) toRegistration() (core.Registration, error) {
	reg := core.Registration{
		Username: sanitizeInput(req.Username),
		Email:    sanitizeInput(req.Email),
		Password: req.Password,
		Aadhar:   sanitizeInput(req.Aadhar),
		Phone:    sanitizeInput(req.Phone),
	}
	if strings.TrimSpace(req.DateOfBirth) != "" {
		dob, err := core.ParseDate(req.DateOfBirth)
		if err != nil {
			return reg, badRequest(errors.New("date_of_birth must be YYYY-MM-DD"))
		}
		reg.DateOfBirth = dob
	}
	return reg, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type predictionRequest struct {
	Month string `json:"month"`
	Async bool   `json:"async"`
}
