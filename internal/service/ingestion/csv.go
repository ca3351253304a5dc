package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
)

// requiredColumns must appear in the CSV header.
var requiredColumns = []string{"transactionId", "accountId", "amount", "timestamp"}

// timestampLayouts are tried in order for CSV timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

type columnSetter func(rec *Record, value string) error

// csvColumns maps lower-cased header names onto record fields. Unknown
// columns are ignored.
var csvColumns = map[string]columnSetter{
	"transactionid": func(r *Record, v string) error { r.TransactionID = v; return nil },
	"accountid":     func(r *Record, v string) error { r.AccountID = v; return nil },
	"amount": func(r *Record, v string) error {
		d, err := decimal.NewFromString(strings.TrimPrefix(v, "$"))
		if err != nil {
			return fmt.Errorf("invalid decimal %q", v)
		}
		r.Amount = d
		return nil
	},
	"currency":        func(r *Record, v string) error { r.Currency = v; return nil },
	"transactiontype": func(r *Record, v string) error { r.TransactionType = v; return nil },
	"timestamp": func(r *Record, v string) error {
		ts, err := ParseTimestamp(v)
		if err != nil {
			return err
		}
		r.Timestamp = ts
		return nil
	},
	"transactionvelocity": intColumn(func(r *Record, n int) { r.TransactionVelocity = n }),
	"avgticketsize": func(r *Record, v string) error {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid decimal %q", v)
		}
		r.AvgTicketSize = &d
		return nil
	},
	"timeofday":                intColumn(func(r *Record, n int) { r.TimeOfDay = &n }),
	"intertransactioninterval": intColumn(func(r *Record, n int) { r.InterTransactionInterval = &n }),
	"daynightratio":            floatColumn(func(r *Record, f float64) { r.DayNightRatio = &f }),
	"ipaddress":                func(r *Record, v string) error { r.IPAddress = v; return nil },
	"ipcountry":                func(r *Record, v string) error { r.IPCountry = v; return nil },
	"billingcountry":           func(r *Record, v string) error { r.BillingCountry = v; return nil },
	"geovelocity":              floatColumn(func(r *Record, f float64) { r.GeoVelocity = &f }),
	"merchantname":             func(r *Record, v string) error { r.MerchantName = v; return nil },
	"merchantcategory":         func(r *Record, v string) error { r.MerchantCategory = v; return nil },
	"location":                 func(r *Record, v string) error { r.Location = v; return nil },
	"devicefingerprint":        func(r *Record, v string) error { r.DeviceFingerprint = v; return nil },
	"deviceid":                 func(r *Record, v string) error { r.DeviceFingerprint = v; return nil },
	"failedattempts":           intColumn(func(r *Record, n int) { r.FailedAttempts = n }),
	"emailage":                 intColumn(func(r *Record, n int) { r.EmailAge = &n }),
	"emaildomain":              func(r *Record, v string) error { r.EmailDomain = v; return nil },
	"phoneverified":            boolColumn(func(r *Record, b bool) { r.PhoneVerified = b }),
	"socialprofilepresence":    boolColumn(func(r *Record, b bool) { r.SocialProfilePresence = b }),
}

func intColumn(set func(*Record, int)) columnSetter {
	return func(r *Record, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		set(r, n)
		return nil
	}
}

func floatColumn(set func(*Record, float64)) columnSetter {
	return func(r *Record, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", v)
		}
		set(r, f)
		return nil
	}
}

func boolColumn(set func(*Record, bool)) columnSetter {
	return func(r *Record, v string) error {
		b, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		set(r, b)
		return nil
	}
}

// ParseTimestamp accepts RFC 3339 and the common date-time layouts exported
// by spreadsheets. Values without a zone are UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

func (s *service) IngestCSV(ctx context.Context, r io.Reader) (*BatchResult, error) {
	rows, err := parseCSV(r)
	if err != nil {
		return nil, err
	}
	return s.processRows(ctx, rows, SourceCSV), nil
}

func parseCSV(r io.Reader) ([]row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domainerrors.NewValidationError("EMPTY_CSV", "CSV file is empty")
	}
	if err != nil {
		return nil, domainerrors.NewValidationError("INVALID_CSV", "CSV header could not be parsed").WithCause(err)
	}

	columns := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		columns[i] = name
		present[strings.ToLower(name)] = true
	}

	var missing []string
	for _, name := range requiredColumns {
		if !present[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, domainerrors.NewValidationError("MISSING_COLUMNS",
			"CSV header is missing required columns: "+strings.Join(missing, ", "))
	}

	var rows []row
	for index := 1; ; index++ {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domainerrors.NewValidationError("INVALID_CSV",
				fmt.Sprintf("CSV row %d could not be parsed", index)).WithCause(err)
		}
		rows = append(rows, buildRow(index, columns, values))
	}
	return rows, nil
}

func buildRow(index int, columns, values []string) row {
	raw := make(map[string]string, len(columns))
	var rec Record
	var problems []string

	for i, name := range columns {
		value := ""
		if i < len(values) {
			value = strings.TrimSpace(values[i])
		}
		raw[name] = value

		set, ok := csvColumns[strings.ToLower(name)]
		if !ok || value == "" {
			continue
		}
		if err := set(&rec, value); err != nil {
			problems = append(problems, name+": "+err.Error())
		}
	}

	r := row{index: index, record: rec, raw: raw}
	if len(problems) > 0 {
		r.parseErr = domainerrors.NewValidationError("INVALID_ROW", strings.Join(problems, "; "))
	}
	return r
}
