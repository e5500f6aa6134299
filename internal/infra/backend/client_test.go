package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"market-chat-gateway/internal/domain"
)

func TestQuery_SendsSessionIDAndDecodesAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/query" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Question  string `json:"question"`
			SessionID string `json:"session_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Question != "bom dia" || body.SessionID != "session_x" {
			t.Errorf("request body = %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"answer": "olá!"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Query(context.Background(), "bom dia", "session_x")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Answer != "olá!" || res.Chart != nil {
		t.Fatalf("result = %+v", res)
	}
}

func TestQuery_ChartDataReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"chart_data": map[string]any{
				"historical": []map[string]any{{"date": "2025-08-20T00:00:00", "close": 30.1}},
				"cone": []map[string]any{{
					"date": "2025-08-21", "predicted_price": 30.5,
					"upper_bound_95": 31.9, "lower_bound_95": 29.1,
					"upper_bound_70": 31.2, "lower_bound_70": 29.8,
				}},
				"analysis": "alta moderada",
			},
		})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "", time.Second)
	res, err := c.Query(context.Background(), "projeção?", "s")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Chart == nil || res.Chart.Analysis != "alta moderada" {
		t.Fatalf("chart = %+v", res.Chart)
	}
	if len(res.Chart.Historical) != 1 || len(res.Chart.Cone) != 1 {
		t.Fatalf("chart lengths = %d/%d", len(res.Chart.Historical), len(res.Chart.Cone))
	}
	if res.Chart.Cone[0].UpperBound95 != 31.9 {
		t.Fatalf("upper_bound_95 = %v", res.Chart.Cone[0].UpperBound95)
	}
}

func TestQuery_MissingAnswerAndChart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "", time.Second)
	_, err := c.Query(context.Background(), "oi", "s")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestVolatilityCone_SharedEnvelopeAndUppercasePath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{
			"chart_data": map[string]any{
				"historical": []map[string]any{{"date": "2025-08-20", "close": 30.1}},
				"cone":       []map[string]any{},
				"analysis":   "x",
			},
		})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "", time.Second)
	chart, err := c.VolatilityCone(context.Background(), "petr4.sa")
	if err != nil {
		t.Fatalf("cone: %v", err)
	}
	if gotPath != "/api/v1/volatility-cone/PETR4.SA" {
		t.Fatalf("path = %s, want uppercased ticker", gotPath)
	}
	if chart == nil || len(chart.Historical) != 1 {
		t.Fatalf("chart = %+v", chart)
	}
}

func TestIntraday_SeparateBaseURL(t *testing.T) {
	intraday := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/intraday/PETR4.SA" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"labels": []string{"10:00", "10:01"},
			"price":  []float64{30.0, 30.2},
			"vwap":   []float64{29.9, 30.1},
		})
	}))
	defer intraday.Close()

	c, _ := NewClient("http://unused.invalid", intraday.URL, time.Second)
	s, err := c.Intraday(context.Background(), "PETR4.SA")
	if err != nil {
		t.Fatalf("intraday: %v", err)
	}
	if len(s.TimeLabels) != 2 || len(s.Price) != 2 || len(s.VWAP) != 2 {
		t.Fatalf("series lengths: %d/%d/%d", len(s.TimeLabels), len(s.Price), len(s.VWAP))
	}
}

func TestErrorBodies(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			"structured detail",
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Dados não encontrados para o ticker XXXX4.SA"})
			},
			"Dados não encontrados para o ticker XXXX4.SA",
		},
		{
			"no structured body falls back to status",
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			"502 Bad Gateway",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c, _ := NewClient(srv.URL, "", time.Second)
			_, err := c.Query(context.Background(), "oi", "s")
			if err == nil || err.Error() != tc.want {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}
