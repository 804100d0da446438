package main

import (
	"bytes"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Help(t *testing.T) {
	out, err := runCommand(t, "--help")
	if err != nil {
		t.Fatalf("--help failed: %v", err)
	}
	for _, sub := range []string{"serve", "db", "version", "agent", "credit", "arena"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help should list %q, got: %s", sub, out)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "conjure dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestDBCmd_Help(t *testing.T) {
	out, err := runCommand(t, "db", "--help")
	if err != nil {
		t.Fatalf("db --help failed: %v", err)
	}
	if !strings.Contains(out, "init") || !strings.Contains(out, "migrate") {
		t.Errorf("db help = %s", out)
	}
}

func TestServeCmd_MissingConfig(t *testing.T) {
	_, err := runCommand(t, "serve", "--config", "/nonexistent/conjure.yaml")
	if err == nil {
		t.Error("serve with a missing config file should fail")
	}
}

func TestAgentCreateCmd_RequiredFlags(t *testing.T) {
	_, err := runCommand(t, "agent", "create")
	if err == nil {
		t.Error("agent create without required flags should fail")
	}
}

func TestArenaCmd_RequiredFlags(t *testing.T) {
	_, err := runCommand(t, "arena")
	if err == nil {
		t.Error("arena without fighters should fail")
	}
}

func TestFighterFromFlags_DisplayDefaultsToName(t *testing.T) {
	f := fighterFromFlags(fighterFlags{userID: "u1", name: "Monki"})
	if f.DisplayName != "Monki" {
		t.Errorf("display name = %q, want character name", f.DisplayName)
	}
	if f.Payment.ID != "u1" {
		t.Errorf("payment method = %+v, want the fighter's wallet", f.Payment)
	}
}

func TestCreditGrantCmd_RequiresWallet(t *testing.T) {
	_, err := runCommand(t, "credit", "grant", "--amount", "10")
	if err == nil {
		t.Error("credit grant without --user or --guild should fail")
	}
}

func TestMethodFromFlags(t *testing.T) {
	if _, err := methodFromFlags("u", "g"); err == nil {
		t.Error("both wallets should be rejected")
	}
	if _, err := methodFromFlags("", ""); err == nil {
		t.Error("no wallet should be rejected")
	}
	m, err := methodFromFlags("u1", "")
	if err != nil || m.ID != "u1" {
		t.Errorf("user method = %+v, %v", m, err)
	}
}
