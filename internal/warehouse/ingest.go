package warehouse

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Order is one row of the sales extract.
type Order struct {
	OrderKey    int64     `json:"order_key"`
	CustKey     int64     `json:"cust_key"`
	Status      string    `json:"status"`
	TotalPrice  float64   `json:"total_price"`
	OrderDate   time.Time `json:"order_date"`
	Priority    string    `json:"priority"`
	Country     string    `json:"country"`
	CountryCode string    `json:"country_code"`
	Region      string    `json:"region"`
	ProductType string    `json:"product_type"`
}

// ErrNoHeader is returned when the extract has no header row.
var ErrNoHeader = errors.New("warehouse: extract has no header row")

// requiredColumns must be present in the extract header.
var requiredColumns = []string{"order_key", "cust_key", "total_price", "order_date"}

// dateLayouts accepted for the order_date column.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

// ReadOrders parses a CSV extract into orders. Column order is free; the
// header row maps columns to fields. Rows that fail validation are skipped
// and counted rather than aborting the whole extract.
func ReadOrders(r io.Reader) (orders []Order, skipped int, err error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, 0, ErrNoHeader
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, 0, fmt.Errorf("extract is missing required column %q", name)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row (wrong field count, bad quoting): skip it.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, 0, fmt.Errorf("read row: %w", err)
		}

		o, ok := parseOrder(record, field)
		if !ok {
			skipped++
			continue
		}
		orders = append(orders, o)
	}
	return orders, skipped, nil
}

func parseOrder(record []string, field func([]string, string) string) (Order, bool) {
	orderKey, err := strconv.ParseInt(field(record, "order_key"), 10, 64)
	if err != nil || orderKey <= 0 {
		return Order{}, false
	}
	custKey, err := strconv.ParseInt(field(record, "cust_key"), 10, 64)
	if err != nil || custKey <= 0 {
		return Order{}, false
	}
	price, err := strconv.ParseFloat(field(record, "total_price"), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return Order{}, false
	}
	date, ok := parseOrderDate(field(record, "order_date"))
	if !ok {
		return Order{}, false
	}

	return Order{
		OrderKey:    orderKey,
		CustKey:     custKey,
		Status:      field(record, "status"),
		TotalPrice:  price,
		OrderDate:   date,
		Priority:    field(record, "priority"),
		Country:     field(record, "country"),
		CountryCode: field(record, "country_code"),
		Region:      field(record, "region"),
		ProductType: field(record, "product_type"),
	}, true
}

func parseOrderDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil && !t.IsZero() {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
