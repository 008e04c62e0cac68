package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// savedSession is the persisted rejoin state: reusing the same player id
// lets a reload pick its old seat back up.
type savedSession struct {
	Room     string `json:"room"`
	Name     string `json:"name"`
	PlayerID string `json:"playerId"`
}

func sessionFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "spyroom", "session.json"), nil
}

func loadSavedSession() savedSession {
	var saved savedSession
	path, err := sessionFile()
	if err != nil {
		return saved
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return saved
	}
	json.Unmarshal(data, &saved)
	return saved
}

func saveSession(s savedSession) {
	path, err := sessionFile()
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	os.WriteFile(path, data, 0o600)
}

// shareLink converts a relay endpoint into the room's join link
func shareLink(endpoint, room string) string {
	base := strings.TrimRight(endpoint, "/")
	base = strings.Replace(base, "wss://", "https://", 1)
	base = strings.Replace(base, "ws://", "http://", 1)
	return fmt.Sprintf("%s/#%s", base, room)
}

// printShareInfo prints the join link for the room, plus a terminal QR
// code when one can be generated
func printShareInfo(endpoint, room string) {
	link := shareLink(endpoint, room)

	fmt.Printf("share this link to invite players to room %q:\n  %s\n", room, link)

	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return
	}
	fmt.Println(qr.ToSmallString(false))
}
