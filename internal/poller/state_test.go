package poller

import (
	"reflect"
	"testing"
	"time"

	"autorip/internal/disc"
)

func TestTrackerPruneReleasesMissingAndRetitledDrives(t *testing.T) {
	tr := newTracker()
	tr.mark([]disc.Record{
		{DriveID: "/dev/sr0", Title: "Movie A"},
		{DriveID: "/dev/sr1", Title: "Movie B"},
		{DriveID: "/dev/sr2", Title: "Movie C"},
	})

	released := tr.prune([]disc.Record{
		{DriveID: "/dev/sr0", Title: "Movie A", Index: 4},
		{DriveID: "/dev/sr1", Title: "Movie B Disc 2"},
	})
	if want := []string{"/dev/sr1", "/dev/sr2"}; !reflect.DeepEqual(released, want) {
		t.Fatalf("released = %v, want %v", released, want)
	}
	want := []TrackedDisc{{DriveID: "/dev/sr0", Title: "Movie A"}}
	if got := tr.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
}

func TestTrackerFilterNewKeepsOrder(t *testing.T) {
	tr := newTracker()
	tr.mark([]disc.Record{{DriveID: "b", Title: "B"}})

	fresh := tr.filterNew([]disc.Record{
		{DriveID: "c", Title: "C"},
		{DriveID: "b", Title: "B"},
		{DriveID: "a", Title: "A"},
	})
	if len(fresh) != 2 || fresh[0].DriveID != "c" || fresh[1].DriveID != "a" {
		t.Fatalf("unexpected fresh records: %v", fresh)
	}
}

func TestTrackerFilterNewComparesTitles(t *testing.T) {
	tr := newTracker()
	tr.mark([]disc.Record{{DriveID: "/dev/sr0", Title: "Movie", FileInfo: &disc.FileInfo{}}})

	if fresh := tr.filterNew([]disc.Record{{DriveID: "/dev/sr0", Title: "Movie"}}); len(fresh) != 0 {
		t.Fatalf("same disc in same drive must be filtered, got %v", fresh)
	}
	if fresh := tr.filterNew([]disc.Record{{DriveID: "/dev/sr0", Title: "Sequel"}}); len(fresh) != 1 {
		t.Fatalf("a different disc in a tracked drive is new, got %v", fresh)
	}
}

func TestGateTransitions(t *testing.T) {
	var g gate
	if !g.tryScan() {
		t.Fatal("expected free gate to accept scan")
	}
	if g.tryScan() {
		t.Fatal("expected second scan to be refused")
	}
	if !g.promote() {
		t.Fatal("expected promote from scanning")
	}
	if g.current() != gateProcessing {
		t.Fatalf("state = %v, want processing", g.current())
	}
	if g.tryScan() {
		t.Fatal("expected scan to be refused while processing")
	}
	g.demote()
	if g.current() != gateScanning {
		t.Fatalf("state = %v, want scanning", g.current())
	}
	g.release()
	if g.promote() {
		t.Fatal("promote must require a held scan")
	}
	if !g.tryScan() {
		t.Fatal("expected released gate to accept scan")
	}
}

func TestNotifierDeliversInSubscriptionOrder(t *testing.T) {
	n := newNotifier()
	var got []string
	n.subscribe(func(StatusEvent) { got = append(got, "first") })
	cancel := n.subscribe(func(StatusEvent) { got = append(got, "second") })
	n.subscribe(func(StatusEvent) { got = append(got, "third") })

	n.publish(StatusEvent{State: PhaseScanning, At: time.Now()})
	cancel()
	cancel()
	n.publish(StatusEvent{State: PhaseIdle, At: time.Now()})

	want := []string{"first", "second", "third", "first", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("deliveries = %v, want %v", got, want)
	}
}

func TestPhaseNamesAndModeParsing(t *testing.T) {
	if PhaseProcessing.String() != "processing" || PhaseIdle.String() != "idle" {
		t.Fatalf("unexpected phase names: %s %s", PhaseProcessing, PhaseIdle)
	}
	text, err := PhaseScanning.MarshalText()
	if err != nil || string(text) != "scanning" {
		t.Fatalf("MarshalText = %q, %v", text, err)
	}
	if mode, err := ParseMode(" Backup "); err != nil || mode != ModeBackup {
		t.Fatalf("ParseMode = %q, %v", mode, err)
	}
	if _, err := ParseMode("encode"); err == nil {
		t.Fatal("expected unsupported mode error")
	}
}
