package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/triad/network"
)

type slot struct {
	Char *struct {
		Owner int `json:"owner"`
		Up    int `json:"up"`
		Down  int `json:"down"`
		Left  int `json:"left"`
		Right int `json:"right"`
	} `json:"char"`
	Trap *struct {
		Present bool `json:"present"`
		Owner   int  `json:"owner"`
		Armed   bool `json:"armed"`
	} `json:"trap"`
}

type state struct {
	Status      string `json:"status"`
	TurnPlayer  int    `json:"turn_player"`
	Winner      int    `json:"winner"`
	SecondsLeft *int   `json:"seconds_left"`
	Viewer      int    `json:"viewer"`
	Board       []slot `json:"board"`
	UnusedChars []int  `json:"unused_chars"`
	UnusedTraps []int  `json:"unused_traps"`
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func render(st state) {
	fmt.Printf("\nstatus=%s turn=P%d you=P%d", st.Status, st.TurnPlayer, st.Viewer)
	if st.SecondsLeft != nil {
		fmt.Printf(" left=%ds", *st.SecondsLeft)
	}
	if st.Status == "finished" {
		fmt.Printf(" winner=%d", st.Winner)
	}
	fmt.Println()
	for i, s := range st.Board {
		cell := "   .   "
		if s.Char != nil {
			c := s.Char
			cell = fmt.Sprintf("P%d%d%d%d%d", c.Owner, c.Up, c.Right, c.Down, c.Left)
		}
		if s.Trap != nil {
			cell += "*"
		} else {
			cell += " "
		}
		fmt.Printf("[%d %-8s]", i, cell)
		if i%3 == 2 {
			fmt.Println()
		}
	}
	fmt.Printf("chars=%v traps=%v\n", st.UnusedChars, st.UnusedTraps)
}

// parse turns a command line into a client message.
func parse(line string) (interface{}, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	args := make([]int, 0, 2)
	for _, f := range fields[1:] {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("not a number: %s", f)
		}
		args = append(args, n)
	}

	switch fields[0] {
	case "sync":
		return network.SyncRequest{Type: network.MsgTypeSync}, nil
	case "play":
		if len(args) != 2 {
			return nil, fmt.Errorf("usage: play <card_id> <pos>")
		}
		return network.PlayCharacterRequest{Type: network.MsgTypePlayCharacter, CardID: args[0], Pos: args[1]}, nil
	case "trap":
		if len(args) != 2 {
			return nil, fmt.Errorf("usage: trap <trap_id> <pos>")
		}
		return network.PlaceTrapRequest{Type: network.MsgTypePlaceTrap, TrapID: args[0], Pos: args[1]}, nil
	}
	return nil, fmt.Errorf("unknown command %q", fields[0])
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	matchID := flag.String("match", "", "match id")
	token := flag.String("token", os.Getenv("TRIAD_TOKEN"), "bearer token")
	flag.Parse()
	if *matchID == "" {
		log.Fatal("-match is required")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/match/" + *matchID, RawQuery: url.Values{"token": {*token}}.Encode()}
	log.Printf("Connecting to %s", u.Host+u.Path)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var msg inbound
			if err := c.ReadJSON(&msg); err != nil {
				log.Println("Read error:", err)
				return
			}
			switch msg.Type {
			case network.MsgTypeState:
				var st state
				if err := json.Unmarshal(msg.Payload, &st); err != nil {
					log.Printf("Bad state: %v", err)
					continue
				}
				render(st)
			case network.MsgTypeError:
				log.Printf("ERROR %s: %s", msg.Code, msg.Message)
			default:
				log.Printf("<- %s", msg.Type)
			}
		}
	}()

	lines := make(chan string)
	go func() {
		reader := bufio.NewScanner(os.Stdin)
		for reader.Scan() {
			lines <- reader.Text()
		}
		close(lines)
	}()

	log.Println("Commands: sync | play <card_id> <pos> | trap <trap_id> <pos>")

	// Write loop
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			msg, err := parse(line)
			if err != nil {
				log.Println(err)
				continue
			}
			if msg == nil {
				continue
			}
			if err := c.WriteJSON(msg); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
