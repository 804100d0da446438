package store

import (
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/davenport-labs/conjure/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Agent{},
		&models.Instance{},
		&models.UserWallet{},
		&models.GuildWallet{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testAgent(t *testing.T, db *gorm.DB) *models.Agent {
	t.Helper()
	agent, err := CreateAgent(db, CreateAgentOpts{
		CreatorID:   "creator-1",
		Name:        "Monki",
		Description: "A mischievous monkey.",
		Public:      true,
	})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	return agent
}

func TestMakeIdentifier(t *testing.T) {
	id := MakeIdentifier("Sir Monki III")
	if !strings.HasPrefix(id, "sir-monki-") {
		t.Errorf("identifier = %q", id)
	}
	if id == MakeIdentifier("Sir Monki III") {
		t.Error("identifiers should be unique per call")
	}
	if !strings.HasPrefix(MakeIdentifier("!!!"), "agent-") {
		t.Errorf("all-symbol name should fall back to agent prefix, got %q", MakeIdentifier("!!!"))
	}
}

func TestCreateAgent_Defaults(t *testing.T) {
	db := testDB(t)
	agent := testAgent(t, db)
	if agent.PricePerReply != 5 {
		t.Errorf("PricePerReply = %d, want default 5", agent.PricePerReply)
	}

	if _, err := CreateAgent(db, CreateAgentOpts{Name: "x"}); err == nil {
		t.Error("CreateAgent should require a description")
	}
	if _, err := CreateAgent(db, CreateAgentOpts{Description: "x"}); err == nil {
		t.Error("CreateAgent should require a name")
	}
}

func TestGetAgent_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := GetAgent(db, "missing"); err == nil {
		t.Error("GetAgent should fail for a missing identifier")
	}
}

func TestListPublicAgents(t *testing.T) {
	db := testDB(t)
	testAgent(t, db)
	if _, err := CreateAgent(db, CreateAgentOpts{
		CreatorID:   "creator-2",
		Name:        "Hidden",
		Description: "private persona",
	}); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	public, err := ListPublicAgents(db)
	if err != nil {
		t.Fatalf("ListPublicAgents: %v", err)
	}
	if len(public) != 1 || public[0].Name != "Monki" {
		t.Errorf("public agents = %+v", public)
	}

	mine, err := ListAgentsByCreator(db, "creator-2")
	if err != nil {
		t.Fatalf("ListAgentsByCreator: %v", err)
	}
	if len(mine) != 1 || mine[0].Name != "Hidden" {
		t.Errorf("creator agents = %+v", mine)
	}
}

func TestBumpAgentStats(t *testing.T) {
	db := testDB(t)
	agent := testAgent(t, db)

	if err := BumpAgentStats(db, agent.Identifier, 1, 0); err != nil {
		t.Fatalf("BumpAgentStats: %v", err)
	}
	if err := BumpAgentStats(db, agent.Identifier, 0, 3); err != nil {
		t.Fatalf("BumpAgentStats: %v", err)
	}

	got, err := GetAgent(db, agent.Identifier)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.Invocations != 1 || got.Replies != 3 {
		t.Errorf("counters = %d/%d, want 1/3", got.Invocations, got.Replies)
	}
}

func TestCreateInstance_SnapshotsAgent(t *testing.T) {
	db := testDB(t)
	agent := testAgent(t, db)

	inst, err := CreateInstance(db, CreateInstanceOpts{
		ChannelID:  "chan-1",
		GuildID:    "guild-1",
		SummonerID: "user-1",
		Agent:      agent,
		BrainKind:  "claude",
		PayerKind:  models.PayerUser,
		PayerID:    "user-1",
	})
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	if inst.ID == "" {
		t.Error("instance should get a generated ID")
	}
	if inst.AgentName != agent.Name || inst.AgentDescription != agent.Description {
		t.Error("instance should snapshot the agent persona")
	}
	if inst.PricePerReply != agent.PricePerReply {
		t.Error("instance should snapshot agent pricing")
	}
	if !inst.Active {
		t.Error("new instance should be active")
	}
}

func TestSaveInstance_RecomputesActive(t *testing.T) {
	db := testDB(t)
	agent := testAgent(t, db)
	inst, err := CreateInstance(db, CreateInstanceOpts{
		ChannelID: "chan-1",
		Agent:     agent,
		BrainKind: "claude",
		PayerKind: models.PayerUser,
		PayerID:   "user-1",
	})
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}

	inst.Exit("requested")
	inst.Active = true // must be corrected on save
	if err := SaveInstance(db, inst); err != nil {
		t.Fatalf("SaveInstance: %v", err)
	}

	got, err := GetInstance(db, inst.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if got.Active {
		t.Error("terminated instance must not be active")
	}
	if got.ExitReason == nil || *got.ExitReason != "requested" {
		t.Errorf("exit reason = %v", got.ExitReason)
	}
}

func TestInstanceQueries(t *testing.T) {
	db := testDB(t)
	agent := testAgent(t, db)

	mk := func(channel string) *models.Instance {
		inst, err := CreateInstance(db, CreateInstanceOpts{
			ChannelID: channel,
			Agent:     agent,
			BrainKind: "claude",
			PayerKind: models.PayerUser,
			PayerID:   "user-1",
		})
		if err != nil {
			t.Fatalf("CreateInstance: %v", err)
		}
		return inst
	}

	a := mk("chan-a")
	mk("chan-a")
	mk("chan-b")

	a.Exit("done")
	if err := SaveInstance(db, a); err != nil {
		t.Fatalf("SaveInstance: %v", err)
	}

	active, err := ActiveInstances(db)
	if err != nil {
		t.Fatalf("ActiveInstances: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("active = %d, want 2", len(active))
	}

	inChan, err := ActiveInstancesInChannel(db, "chan-a")
	if err != nil {
		t.Fatalf("ActiveInstancesInChannel: %v", err)
	}
	if len(inChan) != 1 {
		t.Errorf("active in chan-a = %d, want 1", len(inChan))
	}

	dead, err := TerminatedInstances(db)
	if err != nil {
		t.Fatalf("TerminatedInstances: %v", err)
	}
	if len(dead) != 1 || dead[0].ID != a.ID {
		t.Errorf("terminated = %+v", dead)
	}

	if err := DeleteInstance(db, a.ID); err != nil {
		t.Fatalf("DeleteInstance: %v", err)
	}
	if _, err := GetInstance(db, a.ID); err == nil {
		t.Error("deleted instance should be gone")
	}
}
