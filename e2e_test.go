package e2e_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/fhe"
	"github.com/cipherword/cipherword/node"
)

const (
	ownerHex   = "0x00000000000000000000000000000000000000a0"
	relayerHex = "0x00000000000000000000000000000000000000b0"
)

func startNode(t *testing.T) *node.Node {
	t.Helper()
	cfg := node.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.RPCPort = 0 // ephemeral port
	cfg.LogLevel = "error"
	cfg.Owner = ownerHex
	cfg.Relayer = relayerHex

	n, err := node.New(cfg)
	if err != nil {
		t.Fatalf("node.New: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("node.Start: %v", err)
	}
	t.Cleanup(func() { n.Stop() })
	return n
}

func rpcCall(t *testing.T, addr, method, params string) json.RawMessage {
	t.Helper()
	body := `{"jsonrpc":"2.0","id":1,"method":"` + method + `","params":` + params + `}`
	resp, err := http.Post("http://"+addr+"/", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("rpc post: %v", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("rpc decode: %v", err)
	}
	if decoded.Error != nil {
		t.Fatalf("rpc %s: %d %s", method, decoded.Error.Code, decoded.Error.Message)
	}
	return decoded.Result
}

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

// TestFullTournament drives a complete game through the assembled node: two
// funded players, a round, guesses, oracle delivery, prize distribution, a
// balance reveal and the RPC read surface.
func TestFullTournament(t *testing.T) {
	n := startNode(t)
	eng := n.Engine()
	relayer := types.HexToAddress(relayerHex)
	alice := addr(1)
	bob := addr(2)

	// --- fund and assemble the room ---
	for _, p := range []types.Address{alice, bob} {
		if err := n.Ledger().Deposit(p, fhe.EncodeInput(50, p)); err != nil {
			t.Fatalf("Deposit: %v", err)
		}
	}
	roomID, err := eng.CreateRoom(alice, "alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := eng.JoinRoom(bob, roomID, "bob"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	// --- round: alice finds the word, bob burns both attempts ---
	roundID, err := eng.StartGame(relayer, roomID, fhe.EncodeWord("CAT", relayer), 3)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if _, err := eng.SubmitGuess(alice, roundID, fhe.EncodeWord("CAT", alice)); err != nil {
		t.Fatalf("SubmitGuess alice: %v", err)
	}
	for _, w := range []string{"DOG", "COW"} {
		if _, err := eng.SubmitGuess(bob, roundID, fhe.EncodeWord(w, bob)); err != nil {
			t.Fatalf("SubmitGuess bob %q: %v", w, err)
		}
	}
	if err := n.Oracle().DeliverAll(); err != nil {
		t.Fatalf("DeliverAll: %v", err)
	}

	view, err := eng.RoundInfo(roundID)
	if err != nil {
		t.Fatalf("RoundInfo: %v", err)
	}
	if !view.Complete || !view.PrizeDistributed {
		t.Fatalf("round must settle with a distributed prize: %+v", view)
	}
	if len(view.Qualified) != 1 || view.Qualified[0] != alice {
		t.Fatalf("qualified: want [alice], got %v", view.Qualified)
	}

	// --- winner's balance through the reveal pipeline ---
	sub := n.Bus().Subscribe(types.EventBalanceRevealed)
	defer sub.Unsubscribe()

	id, err := n.Ledger().RequestReveal(alice)
	if err != nil {
		t.Fatalf("RequestReveal: %v", err)
	}
	if err := n.Oracle().Deliver(id); err != nil {
		t.Fatalf("Deliver reveal: %v", err)
	}

	select {
	case ev := <-sub.Chan():
		data := ev.Data.(types.BalanceRevealedEvent)
		// 50 - 10 fee + 20 pool = 60.
		if data.Principal != alice || data.Value != 60 {
			t.Fatalf("reveal: want (alice, 60), got (%s, %d)", data.Principal, data.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the reveal event")
	}

	// --- read surface over HTTP ---
	var room struct {
		ID      uint64   `json:"id"`
		Active  bool     `json:"active"`
		Members []string `json:"members"`
	}
	raw := rpcCall(t, n.RPCAddr(), "word_getRoom", `{"roomId":1}`)
	if err := json.Unmarshal(raw, &room); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	if room.ID != roomID || room.Active || len(room.Members) != 2 {
		t.Fatalf("room over rpc: %+v", room)
	}

	var xp uint64
	raw = rpcCall(t, n.RPCAddr(), "word_getXP", `{"roomId":1,"wallet":"`+alice.Hex()+`"}`)
	if err := json.Unmarshal(raw, &xp); err != nil {
		t.Fatalf("decode xp: %v", err)
	}
	if xp == 0 {
		t.Fatal("winner XP must be visible over rpc")
	}

	// --- journal caught the stream ---
	var summary struct {
		RoundID uint64  `json:"roundId"`
		Winner  *string `json:"winner"`
	}
	// Journaling is asynchronous; give the pump a moment.
	deadline := time.Now().Add(2 * time.Second)
	for {
		recs, err := n.History().Events(1, 0)
		if err != nil {
			t.Fatalf("history events: %v", err)
		}
		if len(recs) > 0 {
			sum, err := n.History().GetRoundSummary(roundID)
			if err == nil {
				summary.RoundID = sum.RoundID
				if sum.Winner != nil {
					s := sum.Winner.Hex()
					summary.Winner = &s
				}
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the journal")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if summary.RoundID != roundID || summary.Winner == nil || *summary.Winner != alice.Hex() {
		t.Fatalf("round summary: %+v", summary)
	}
}

// TestInsufficientBalanceStaysSilent checks that a broke member neither
// blocks the round nor becomes distinguishable through any observable
// surface.
func TestInsufficientBalanceStaysSilent(t *testing.T) {
	n := startNode(t)
	eng := n.Engine()
	relayer := types.HexToAddress(relayerHex)
	rich := addr(1)
	poor := addr(2)

	if err := n.Ledger().Deposit(rich, fhe.EncodeInput(50, rich)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := n.Ledger().Deposit(poor, fhe.EncodeInput(2, poor)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	roomID, err := eng.CreateRoom(rich, "rich")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := eng.JoinRoom(poor, roomID, "poor"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if _, err := eng.StartGame(relayer, roomID, fhe.EncodeWord("CAT", relayer), 3); err != nil {
		t.Fatalf("StartGame must succeed with a broke member: %v", err)
	}

	// Both balances verified through the reveal pipeline: rich paid, poor
	// kept everything.
	sub := n.Bus().Subscribe(types.EventBalanceRevealed)
	defer sub.Unsubscribe()

	want := map[types.Address]uint64{rich: 40, poor: 2}
	for p := range want {
		id, err := n.Ledger().RequestReveal(p)
		if err != nil {
			t.Fatalf("RequestReveal: %v", err)
		}
		if err := n.Oracle().Deliver(id); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.Chan():
			data := ev.Data.(types.BalanceRevealedEvent)
			if want[data.Principal] != data.Value {
				t.Fatalf("balance of %s: want %d, got %d", data.Principal, want[data.Principal], data.Value)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for reveals")
		}
	}
}
