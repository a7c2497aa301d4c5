package disc_test

import (
	"testing"

	"autorip/internal/disc"
)

const driveListing = `MSG:1005,0,1,"MakeMKV v1.17.7 linux(x64-release) started","%1 started","MakeMKV v1.17.7"
DRV:0,2,999,12,"BD-RE HL-DT-ST BD-RE  WH16NS40 1.05","MOVIE_TITLE","/dev/sr0"
DRV:1,0,999,0,"DVD+R-DL ASUS DRW-24F1ST","","/dev/sr1"
DRV:2,2,999,1,"USB Drive","","/dev/sr2"
DRV:3,256,999,0,"","",""
DRV:4,256,999,0,"","",""
`

func TestParseDrives(t *testing.T) {
	drives := disc.ParseDrives([]byte(driveListing))
	if len(drives) != 3 {
		t.Fatalf("expected 3 drives, got %d: %+v", len(drives), drives)
	}
	if !drives[0].HasDisc() || drives[0].DiscLabel != "MOVIE_TITLE" || drives[0].Device != "/dev/sr0" {
		t.Fatalf("unexpected first drive: %+v", drives[0])
	}
	if drives[1].HasDisc() {
		t.Fatalf("empty drive reported a disc: %+v", drives[1])
	}
	if drives[1].State.String() != "empty" {
		t.Fatalf("state = %s", drives[1].State)
	}

	rec := drives[2].Record()
	if rec.DriveID != "/dev/sr2" || rec.Title != disc.UnknownTitle || rec.Index != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.SourceArg() != "disc:2" {
		t.Fatalf("source arg = %q", rec.SourceArg())
	}
	if rec.Enriched() {
		t.Fatal("detected record should not be enriched")
	}
}

func TestDriveIDFallsBackToIndex(t *testing.T) {
	d := disc.Drive{Index: 4, State: disc.DriveInserted, DriveName: "virtual"}
	if d.ID() != "disc:4" {
		t.Fatalf("ID = %q", d.ID())
	}
}

func TestRecordSameDisc(t *testing.T) {
	a := disc.Record{DriveID: "/dev/sr0", Title: "MOVIE"}
	if !a.SameDisc(disc.Record{DriveID: "/dev/sr0", Title: "MOVIE", Index: 3}) {
		t.Fatal("expected same disc when drive and title match")
	}
	if a.SameDisc(disc.Record{DriveID: "/dev/sr0", Title: "OTHER"}) {
		t.Fatal("title change must be a different disc")
	}
	if a.SameDisc(disc.Record{DriveID: "/dev/sr1", Title: "MOVIE"}) {
		t.Fatal("drive change must be a different disc")
	}
}

func TestIsGenericLabel(t *testing.T) {
	cases := map[string]bool{
		"":                  true,
		"12345":             true,
		"DVD_VIDEO":         true,
		"LOGICAL_VOLUME_ID": true,
		"Blade Runner":      false,
		"BLADE_RUNNER_2049": false,
	}
	for label, want := range cases {
		if got := disc.IsGenericLabel(label); got != want {
			t.Fatalf("IsGenericLabel(%q) = %v, want %v", label, got, want)
		}
	}
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"Movie: The Sequel": "Movie_ The Sequel",
		"a/b\\c":            "a_b_c",
		"  ..  ":            "disc",
		"PLAIN_TITLE":       "PLAIN_TITLE",
	}
	for input, want := range cases {
		if got := disc.SafeName(input); got != want {
			t.Fatalf("SafeName(%q) = %q, want %q", input, got, want)
		}
	}
}
