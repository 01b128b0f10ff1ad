package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Mikhail-2byte/Dnd-version2/internal/db"
	"github.com/Mikhail-2byte/Dnd-version2/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestGenerateInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := GenerateInviteCode()
		if len(code) != 6 {
			t.Fatalf("GenerateInviteCode() length = %d, want 6", len(code))
		}
		for _, ch := range code {
			if !strings.ContainsRune(inviteCodeAlphabet, ch) {
				t.Fatalf("GenerateInviteCode() produced %q with char %q outside alphabet", code, ch)
			}
		}
		seen[code] = true
	}
	// 200 draws from a 36^6 space should essentially never all collide.
	if len(seen) < 2 {
		t.Error("GenerateInviteCode() produced the same code 200 times")
	}
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect("host=localhost user=postgres password=postgres dbname=dnd port=5432 sslmode=disable TimeZone=UTC")
	if err != nil {
		t.Skipf("skip: db not available: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Skipf("skip: migrate failed: %v", err)
	}
	return gdb
}

func createTestUser(t *testing.T, gdb *gorm.DB, name string) uuid.UUID {
	t.Helper()
	u := models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("%s-%s@test.local", name, uuid.New().String()[:8]),
		Username:     name,
		PasswordHash: "x",
	}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func TestCreateGame(t *testing.T) {
	gdb := testDB(t)
	svc := NewGameService(gdb)
	ctx := context.Background()
	masterID := createTestUser(t, gdb, "master")

	game, err := svc.CreateGame(ctx, "The Lost Mine", masterID)
	if err != nil {
		t.Fatalf("CreateGame() error = %v", err)
	}
	if game.Name != "The Lost Mine" {
		t.Errorf("game name = %q, want The Lost Mine", game.Name)
	}
	if game.MasterID != masterID {
		t.Errorf("game master = %v, want %v", game.MasterID, masterID)
	}
	if len(game.InviteCode) != 6 {
		t.Errorf("invite code = %q, want 6 chars", game.InviteCode)
	}

	// Creation also registers the creator as a master participant.
	p, err := svc.Participant(ctx, game.ID, masterID)
	if err != nil {
		t.Fatalf("Participant() error = %v", err)
	}
	if p.Role != models.RoleMaster {
		t.Errorf("creator role = %q, want master", p.Role)
	}

	found, err := svc.GameByInviteCode(ctx, game.InviteCode)
	if err != nil {
		t.Fatalf("GameByInviteCode() error = %v", err)
	}
	if found.ID != game.ID {
		t.Errorf("GameByInviteCode() = %v, want %v", found.ID, game.ID)
	}
}

func TestGameByID_NotFound(t *testing.T) {
	gdb := testDB(t)
	svc := NewGameService(gdb)

	_, err := svc.GameByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrGameNotFound) {
		t.Errorf("GameByID() error = %v, want ErrGameNotFound", err)
	}
}

func TestJoinGame_Idempotent(t *testing.T) {
	gdb := testDB(t)
	svc := NewGameService(gdb)
	ctx := context.Background()

	masterID := createTestUser(t, gdb, "master")
	playerID := createTestUser(t, gdb, "player")
	game, err := svc.CreateGame(ctx, "Joinable", masterID)
	if err != nil {
		t.Fatalf("CreateGame() error = %v", err)
	}

	if _, err := svc.JoinGame(ctx, game.ID, playerID); err != nil {
		t.Fatalf("JoinGame() first error = %v", err)
	}
	// Joining again is a no-op, not an error.
	if _, err := svc.JoinGame(ctx, game.ID, playerID); err != nil {
		t.Fatalf("JoinGame() second error = %v", err)
	}

	players, err := svc.Players(ctx, game.ID)
	if err != nil {
		t.Fatalf("Players() error = %v", err)
	}
	if len(players) != 2 {
		t.Errorf("Players() = %d entries, want 2 (master + player)", len(players))
	}

	p, err := svc.Participant(ctx, game.ID, playerID)
	if err != nil {
		t.Fatalf("Participant() error = %v", err)
	}
	if p.Role != models.RolePlayer {
		t.Errorf("joiner role = %q, want player", p.Role)
	}
}

func TestIsMaster(t *testing.T) {
	gdb := testDB(t)
	svc := NewGameService(gdb)
	ctx := context.Background()

	masterID := createTestUser(t, gdb, "master")
	playerID := createTestUser(t, gdb, "player")
	game, err := svc.CreateGame(ctx, "Command", masterID)
	if err != nil {
		t.Fatalf("CreateGame() error = %v", err)
	}
	if _, err := svc.JoinGame(ctx, game.ID, playerID); err != nil {
		t.Fatalf("JoinGame() error = %v", err)
	}

	ok, err := svc.IsMaster(ctx, game.ID, masterID)
	if err != nil || !ok {
		t.Errorf("IsMaster(master) = %v, %v, want true", ok, err)
	}
	ok, err = svc.IsMaster(ctx, game.ID, playerID)
	if err != nil || ok {
		t.Errorf("IsMaster(player) = %v, %v, want false", ok, err)
	}
}

func TestTokenLifecycle(t *testing.T) {
	gdb := testDB(t)
	svc := NewGameService(gdb)
	ctx := context.Background()

	masterID := createTestUser(t, gdb, "master")
	game, err := svc.CreateGame(ctx, "Board", masterID)
	if err != nil {
		t.Fatalf("CreateGame() error = %v", err)
	}

	tok, err := svc.CreateToken(ctx, game.ID, "Goblin", 25, 30, nil)
	if err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	moved, err := svc.UpdateTokenPosition(ctx, tok.ID, 75, 80)
	if err != nil {
		t.Fatalf("UpdateTokenPosition() error = %v", err)
	}
	if moved.X != 75 || moved.Y != 80 {
		t.Errorf("moved token at (%v, %v), want (75, 80)", moved.X, moved.Y)
	}

	tokens, err := svc.TokensByGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("TokensByGame() error = %v", err)
	}
	if len(tokens) != 1 || tokens[0].X != 75 {
		t.Errorf("TokensByGame() = %+v, want one token at x=75", tokens)
	}

	if err := svc.DeleteToken(ctx, tok.ID); err != nil {
		t.Fatalf("DeleteToken() error = %v", err)
	}
	if err := svc.DeleteToken(ctx, tok.ID); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("DeleteToken() second error = %v, want ErrTokenNotFound", err)
	}
	if _, err := svc.UpdateTokenPosition(ctx, tok.ID, 1, 1); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("UpdateTokenPosition() after delete error = %v, want ErrTokenNotFound", err)
	}
}
