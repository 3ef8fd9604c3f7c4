package payu

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{
			name: "Decimal amount",
			in:   map[string]any{"amount": decimal.RequireFromString("123.45")},
			want: map[string]any{"amount": "12345"},
		},
		{
			name: "String amount",
			in:   map[string]any{"total": "10.00"},
			want: map[string]any{"total": "1000"},
		},
		{
			name: "Integer amount",
			in:   map[string]any{"amount": 7},
			want: map[string]any{"amount": "700"},
		},
		{
			name: "Non-convertible key untouched",
			in:   map[string]any{"currencyCode": "PLN", "extOrderId": "99"},
			want: map[string]any{"currencyCode": "PLN", "extOrderId": "99"},
		},
		{
			name: "Nested products",
			in: map[string]any{
				"products": []any{
					map[string]any{"name": "a", "unitPrice": decimal.RequireFromString("1.99"), "quantity": 2},
					map[string]any{"name": "b", "unitPrice": "0.50", "quantity": 1},
				},
				"totalAmount": decimal.RequireFromString("4.48"),
			},
			want: map[string]any{
				"products": []any{
					map[string]any{"name": "a", "unitPrice": "199", "quantity": 2},
					map[string]any{"name": "b", "unitPrice": "50", "quantity": 1},
				},
				"totalAmount": "448",
			},
		},
		{
			name: "Nil value under convertible key",
			in:   map[string]any{"amount": nil},
			want: map[string]any{"amount": nil},
		},
		{
			name: "Unparseable value passes through",
			in:   map[string]any{"amount": "not-a-number"},
			want: map[string]any{"amount": "not-a-number"},
		},
		{
			name: "Nil tree",
			in:   nil,
			want: nil,
		},
		{
			name: "Bare scalar",
			in:   "PLN",
			want: "PLN",
		},
		{
			name: "List of scalars untouched",
			in:   []any{"a", 1, true},
			want: []any{"a", 1, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToMinorUnits(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToMinorUnits() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestToMinorUnitsDoesNotMutateInput(t *testing.T) {
	in := map[string]any{
		"amount": "10.00",
		"buyer":  map[string]any{"email": "a@b.c"},
	}
	ToMinorUnits(in)

	if in["amount"] != "10.00" {
		t.Errorf("input mutated: amount = %v", in["amount"])
	}
}

func TestToMajorUnits(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{
			name: "Cent string",
			in:   map[string]any{"amount": "12345"},
			want: map[string]any{"amount": decimal.RequireFromString("123.45")},
		},
		{
			name: "JSON number",
			in:   map[string]any{"total": json.Number("1000")},
			want: map[string]any{"total": decimal.RequireFromString("10")},
		},
		{
			name: "Float from generic unmarshal",
			in:   map[string]any{"available": float64(250)},
			want: map[string]any{"available": decimal.RequireFromString("2.5")},
		},
		{
			name: "Non-convertible key untouched",
			in:   map[string]any{"status": "COMPLETED"},
			want: map[string]any{"status": "COMPLETED"},
		},
		{
			name: "Unparseable value passes through",
			in:   map[string]any{"amount": true},
			want: map[string]any{"amount": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToMajorUnits(tt.in)
			wantMap, ok := tt.want.(map[string]any)
			if !ok {
				t.Fatalf("bad test case: want must be a map")
			}
			gotMap, ok := got.(map[string]any)
			if !ok {
				t.Fatalf("ToMajorUnits() = %T, want map", got)
			}
			for k, want := range wantMap {
				gotVal := gotMap[k]
				if wd, ok := want.(decimal.Decimal); ok {
					gd, ok := gotVal.(decimal.Decimal)
					if !ok || !gd.Equal(wd) {
						t.Errorf("ToMajorUnits()[%s] = %v, want %v", k, gotVal, wd)
					}
					continue
				}
				if !reflect.DeepEqual(gotVal, want) {
					t.Errorf("ToMajorUnits()[%s] = %#v, want %#v", k, gotVal, want)
				}
			}
		})
	}
}

func TestAmountRoundTrip(t *testing.T) {
	amounts := []string{"0", "0.01", "1", "19.99", "123.45", "100000", "0.1"}

	for _, raw := range amounts {
		d := decimal.RequireFromString(raw)
		tree := map[string]any{"amount": d}

		minor := ToMinorUnits(tree)
		major := ToMajorUnits(minor)

		got, ok := major.(map[string]any)["amount"].(decimal.Decimal)
		if !ok {
			t.Fatalf("round trip of %s lost the decimal type", raw)
		}
		if !got.Equal(d) {
			t.Errorf("round trip of %s = %s", raw, got)
		}
	}
}
