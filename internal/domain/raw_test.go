package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRawRecordLooseFields(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		price   LooseText
		online  LooseBool
		dates   []string
		accreds []string
	}{
		{
			name:   "string price and list",
			input:  `{"title":"A","price":"£450 + VAT","online":"yes","upcoming_dates":["12 May"," ","3 June"]}`,
			price:  "£450 + VAT",
			online: true,
			dates:  []string{"12 May", "3 June"},
		},
		{
			name:    "numeric price and single date",
			input:   `{"title":"B","price":395.5,"online":false,"upcoming_dates":"1 July","accreditations":"City & Guilds"}`,
			price:   "395.5",
			online:  false,
			dates:   []string{"1 July"},
			accreds: []string{"City & Guilds"},
		},
		{
			name:   "numeric dates",
			input:  `{"title":"D","upcoming_dates":[20250101, "3 June", true]}`,
			online: false,
			dates:  []string{"20250101", "3 June"},
		},
		{
			name:    "unexpected shapes degrade to empty",
			input:   `{"title":"E","price":{"amount":450},"online":[1],"upcoming_dates":{"date":"1 May"},"accreditations":42}`,
			price:   "",
			online:  false,
			dates:   nil,
			accreds: nil,
		},
		{
			name:   "object dates and null price",
			input:  `{"title":"C","price":null,"upcoming_dates":[{"date":"2 Aug"},{"other":"x"}]}`,
			price:  "",
			online: false,
			dates:  []string{"2 Aug"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var r RawRecord
			if err := json.Unmarshal([]byte(tc.input), &r); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if r.Price != tc.price {
				t.Errorf("Price = %q, want %q", r.Price, tc.price)
			}
			if r.Online != tc.online {
				t.Errorf("Online = %v, want %v", r.Online, tc.online)
			}
			if !reflect.DeepEqual([]string(r.UpcomingDates), tc.dates) {
				t.Errorf("UpcomingDates = %v, want %v", r.UpcomingDates, tc.dates)
			}
			if !reflect.DeepEqual([]string(r.Accreditations), tc.accreds) {
				t.Errorf("Accreditations = %v, want %v", r.Accreditations, tc.accreds)
			}
		})
	}
}

func TestSourceBatchURLs(t *testing.T) {
	b := SourceBatch{
		Number: 1,
		Name:   "London",
		Providers: []ProviderDescriptor{
			{Name: "A", Slug: "a", URL: "https://a.example"},
			{Name: "B", Slug: "b", URL: "https://b.example"},
		},
	}
	want := []string{"https://a.example", "https://b.example"}
	if got := b.URLs(); !reflect.DeepEqual(got, want) {
		t.Errorf("URLs() = %v, want %v", got, want)
	}
}
