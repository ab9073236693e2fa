package apiclient_test

import (
	"testing"
	"time"

	"github.com/Joelisking/projectx-client/apiclient"
	"github.com/Joelisking/projectx-client/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestEncodeQuery(t *testing.T) {
	var nilSlice []string
	var nilPtr *int

	tests := []struct {
		name   string
		params apiclient.Params
		want   string
	}{
		{"empty", nil, ""},
		{"arrays repeat the key and nil is dropped", apiclient.Params{"tag": []string{"a", "b"}, "status": nil}, "tag=a&tag=b"},
		{"keys are sorted", apiclient.Params{"page": 2, "category": "books", "available": true}, "available=true&category=books&page=2"},
		{"nil pointer and nil slice are dropped", apiclient.Params{"p": nilPtr, "s": nilSlice, "q": "desk"}, "q=desk"},
		{"empty slice is dropped", apiclient.Params{"tag": []string{}}, ""},
		{"pointers are dereferenced", apiclient.Params{"min_price": utils.Ptr(12.5), "campus": utils.Ptr("legon")}, "campus=legon&min_price=12.5"},
		{"mixed arrays", apiclient.Params{"id": []int{3, 1}}, "id=3&id=1"},
		{"any slices skip nil entries", apiclient.Params{"x": []any{"a", nil, 2}}, "x=a&x=2"},
		{"values are escaped", apiclient.Params{"search": "desk & chair"}, "search=desk+%26+chair"},
		{"times use RFC3339", apiclient.Params{"since": time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}, "since=2025-01-02T03%3A04%3A05Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, apiclient.EncodeQuery(tt.params))
		})
	}
}
