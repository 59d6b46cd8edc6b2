package router

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kataras/go-events"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backtest-engine/src/backtester/models"
	"github.com/jiaming2012/backtest-engine/src/backtester/services"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleStream relays a run's per-bar snapshots to a websocket subscriber
// and closes the connection once the run reaches a terminal state. A slow
// subscriber drops snapshots rather than stalling the run.
func handleStream(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		setErrorResponse("stream: failed to parse backtest id", 400, err, w)
		return
	}

	run, found := runService.GetRun(id)
	if !found {
		w.WriteHeader(404)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("stream %s: upgrade: %v", id, err)
		return
	}

	snapshots := make(chan *models.PortfolioSnapshot, 256)

	listener := events.Listener(func(payload ...interface{}) {
		if len(payload) == 0 {
			return
		}

		snapshot, ok := payload[0].(*models.PortfolioSnapshot)
		if !ok {
			return
		}

		select {
		case snapshots <- snapshot:
		default:
			log.Warnf("stream %s: subscriber too slow, dropping snapshot", id)
		}
	})

	emitter := runService.Emitter()
	topic := services.SnapshotTopic(id)
	emitter.AddListener(topic, listener)

	go func() {
		defer conn.Close()
		defer emitter.RemoveListener(topic, listener)

		for {
			select {
			case snapshot := <-snapshots:
				if err := writeSnapshot(conn, snapshot); err != nil {
					log.Errorf("stream %s: write: %v", id, err)
					return
				}
			case <-run.Done():
				drainAndClose(conn, snapshots, string(run.Status()))
				return
			}
		}
	}()
}

func writeSnapshot(conn *websocket.Conn, snapshot *models.PortfolioSnapshot) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(snapshot)
}

// drainAndClose flushes snapshots buffered before the terminal state, then
// sends a close frame carrying the final status.
func drainAndClose(conn *websocket.Conn, snapshots chan *models.PortfolioSnapshot, status string) {
	for {
		select {
		case snapshot := <-snapshots:
			if err := writeSnapshot(conn, snapshot); err != nil {
				return
			}
		default:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, status))
			return
		}
	}
}
