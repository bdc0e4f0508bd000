package job

import (
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"
)

func TestProgressString(t *testing.T) {
	tests := map[Progress]string{
		Active:       "Active",
		Done:         "Done",
		Percent(42):  "42%",
		Percent(150): "100%",
		"x":          "Unknown",
	}
	for p, expected := range tests {
		if p.String() != expected {
			t.Errorf("Expected %q for %q, got %q", expected, string(p), p.String())
		}
	}
}

func TestFormatStatuses(t *testing.T) {
	host := net.ParseIP("10.0.1.7")
	statuses := []Status{
		{ID: EncodeID(2, net.ParseIP("10.0.1.23")), Progress: Done},
		{ID: EncodeID(1, net.ParseIP("10.0.1.7")), Progress: Active},
	}
	value, err := FormatStatuses(host, statuses)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if value != "1.0.A,2.10.D" {
		t.Fatalf("Unexpected tag value %q", value)
	}

	parsed, err := ParseStatuses(host, value)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(parsed) != 2 || parsed[1].ID != statuses[0].ID || !parsed[1].Progress.IsDone() || !parsed[1].Host.Equal(host) {
		t.Fatalf("Unexpected statuses %v", parsed)
	}
}

func TestParseStatusesRejectsGarbage(t *testing.T) {
	host := net.ParseIP("10.0.1.7")
	if statuses, err := ParseStatuses(host, ""); err != nil || statuses != nil {
		t.Fatalf("Expected nothing for an empty tag, got %v %v", statuses, err)
	}
	for _, value := range []string{"1.0", "1.0.Q", "z.0.A"} {
		if _, err := ParseStatuses(host, value); err == nil {
			t.Errorf("Expected an error for %q", value)
		}
	}
	if _, err := FormatStatuses(host, []Status{{ID: "bogus", Progress: Active}}); err == nil {
		t.Fatalf("Expected an error for a malformed ID")
	}
}

func TestInfoOmitsUnfinished(t *testing.T) {
	data, err := json.Marshal(Info{Status: Active, Started: time.Unix(0, 0).UTC()})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "finished") {
		t.Fatalf("Expected no finish time for an active job, got %s", data)
	}
	finished := time.Unix(60, 0).UTC()
	data, err = json.Marshal(Info{Status: Done, Finished: &finished})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"finished":"1970-01-01T00:01:00Z"`) {
		t.Fatalf("Expected the finish time, got %s", data)
	}
}
