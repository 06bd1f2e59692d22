package parser

import (
	"strings"
	"testing"
	"time"
)

func TestFTPSession_ParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want FTPEventRecord
	}{
		{
			name: "connect with mapped address",
			line: `Mon Jan  1 00:00:00 2024 [pid 100] CONNECT: Client "::ffff:10.0.0.9"`,
			want: FTPEventRecord{
				Timestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				User:       "anonymous",
				ClientIP:   "10.0.0.9",
				Action:     ActionConnect,
				RawDetails: `Mon Jan 1 00:00:00 2024 CONNECT: Client "::ffff:10.0.0.9"`,
			},
		},
		{
			name: "login with user tag",
			line: `Mon Jan  1 00:00:01 2024 [pid 100] [alice] OK LOGIN: Client "10.0.0.5"`,
			want: FTPEventRecord{
				Timestamp:  time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC),
				User:       "alice",
				ClientIP:   "10.0.0.5",
				Action:     ActionLogin,
				RawDetails: `Mon Jan 1 00:00:01 2024 OK LOGIN: Client "10.0.0.5"`,
			},
		},
		{
			name: "failed login",
			line: `Mon Jan  1 00:00:01 2024 [pid 100] [mallory] FAIL LOGIN: Client "10.0.0.66"`,
			want: FTPEventRecord{
				Timestamp:  time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC),
				User:       "mallory",
				ClientIP:   "10.0.0.66",
				Action:     ActionLoginFailed,
				RawDetails: `Mon Jan 1 00:00:01 2024 FAIL LOGIN: Client "10.0.0.66"`,
			},
		},
		{
			name: "upload target from quoted pair",
			line: `Mon Jan  1 00:01:00 2024 [pid 102] [alice] OK UPLOAD: Client "10.0.0.5", "/upload/a.txt", 1024 bytes, 12.30Kbyte/sec`,
			want: FTPEventRecord{
				Timestamp:  time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC),
				User:       "alice",
				ClientIP:   "10.0.0.5",
				Action:     ActionUpload,
				FileTarget: "/upload/a.txt",
				RawDetails: `Mon Jan 1 00:01:00 2024 OK UPLOAD: Client "10.0.0.5", "/upload/a.txt", 1024 bytes, 12.30Kbyte/sec`,
			},
		},
		{
			name: "user command names the user",
			line: `Mon Jan  1 00:00:02 2024 [pid 100] FTP command: Client "10.0.0.5", "USER bob"`,
			want: FTPEventRecord{
				Timestamp:  time.Date(2024, 1, 1, 0, 0, 2, 0, time.UTC),
				User:       "bob",
				ClientIP:   "10.0.0.5",
				Action:     ActionUser,
				RawDetails: `Mon Jan 1 00:00:02 2024 FTP command: Client "10.0.0.5", "USER bob"`,
			},
		},
		{
			name: "legacy user and host",
			line: `Tue Jun 15 10:23:45 2023 carol (192.168.1.4): DELE old.txt`,
			want: FTPEventRecord{
				Timestamp:  time.Date(2023, 6, 15, 10, 23, 45, 0, time.UTC),
				User:       "carol",
				ClientIP:   "192.168.1.4",
				Action:     ActionDelete,
				FileTarget: "old.txt",
				RawDetails: `Tue Jun 15 10:23:45 2023 carol (192.168.1.4): DELE old.txt`,
			},
		},
		{
			name: "unknown action",
			line: `Mon Jan  1 00:00:01 2024 [pid 1] [dave] something else happened`,
			want: FTPEventRecord{
				Timestamp:  time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC),
				User:       "dave",
				Action:     ActionUnknown,
				RawDetails: `Mon Jan 1 00:00:01 2024 something else happened`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewFTPSession().ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if !got.Timestamp.Equal(tt.want.Timestamp) {
				t.Errorf("Timestamp = %v, want %v", got.Timestamp, tt.want.Timestamp)
			}
			got.Timestamp = tt.want.Timestamp
			if got != tt.want {
				t.Errorf("ParseLine() =\n%+v\nwant\n%+v", got, tt.want)
			}
		})
	}
}

func TestFTPSession_CarriesUserAndIP(t *testing.T) {
	s := NewFTPSession()

	first, err := s.ParseLine(`Mon Jan  1 00:00:01 2024 [pid 100] [alice] OK LOGIN: Client "10.0.0.5"`)
	if err != nil {
		t.Fatalf("first line: %v", err)
	}
	second, err := s.ParseLine(`Mon Jan  1 00:00:05 2024 [pid 101] FTP command: STOR "report 2024.pdf"`)
	if err != nil {
		t.Fatalf("second line: %v", err)
	}

	if first.User != "alice" || first.ClientIP != "10.0.0.5" {
		t.Errorf("first = %q/%q", first.User, first.ClientIP)
	}
	if second.User != "alice" {
		t.Errorf("second.User = %q, want alice", second.User)
	}
	if second.ClientIP != "10.0.0.5" {
		t.Errorf("second.ClientIP = %q, want 10.0.0.5", second.ClientIP)
	}
	if second.Action != ActionStor || second.FileTarget != "report 2024.pdf" {
		t.Errorf("second = %s %q", second.Action, second.FileTarget)
	}
}

func TestFTPSession_AnonymousDoesNotOverwrite(t *testing.T) {
	s := &FTPSession{User: "alice", ClientIP: "10.0.0.5"}

	rec, err := s.ParseLine(`Mon Jan  1 00:00:05 2024 [pid 101] [anonymous] OK DOWNLOAD: Client "10.0.0.8", "/pub/x.iso", 10 bytes`)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if rec.User != "anonymous" {
		t.Errorf("User = %q, want anonymous", rec.User)
	}
	if s.User != "alice" {
		t.Errorf("session user = %q, want alice", s.User)
	}
	if s.ClientIP != "10.0.0.8" {
		t.Errorf("session ip = %q, want 10.0.0.8", s.ClientIP)
	}
	if rec.FileTarget != "/pub/x.iso" {
		t.Errorf("FileTarget = %q", rec.FileTarget)
	}
}

func TestParseFTPLog_FreshSessionPerCall(t *testing.T) {
	first := `Mon Jan  1 00:00:01 2024 [pid 100] [alice] OK LOGIN: Client "10.0.0.5"`
	second := `Mon Jan  1 00:00:05 2024 [pid 101] FTP command: QUIT`

	if _, _, err := ParseFTPLog(strings.NewReader(first)); err != nil {
		t.Fatalf("ParseFTPLog: %v", err)
	}
	recs, _, err := ParseFTPLog(strings.NewReader(second))
	if err != nil {
		t.Fatalf("ParseFTPLog: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0].User != "anonymous" || recs[0].ClientIP != "" {
		t.Errorf("state leaked between files: %+v", recs[0])
	}
	if recs[0].Action != ActionQuit {
		t.Errorf("Action = %s, want QUIT", recs[0].Action)
	}
}

func TestParseFTPLog_SkipsShortLines(t *testing.T) {
	input := "Mon Jan  1 00:00:01 2024 [pid 1] CONNECT: Client \"1.2.3.4\"\nbroken line\n"
	recs, stats, err := ParseFTPLog(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseFTPLog: %v", err)
	}
	if len(recs) != 1 || stats.Skipped != 1 || stats.Lines != 2 {
		t.Errorf("got %d records, stats %+v", len(recs), stats)
	}
}
