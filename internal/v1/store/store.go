// Package store persists rooms, players, and game state in MongoDB. Each
// repository mirrors one of the original implementation's Beanie document
// repositories (room/player/game_state), adapted to the mongo-driver API
// and wrapped in the same circuit-breaker pattern the teacher uses for its
// Redis client (§3 data model, component backing modules D/E/G).
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/metrics"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	roomsCollection      = "rooms"
	playersCollection    = "players"
	gameStatesCollection = "game_states"
)

// Connect dials MongoDB and returns a ready-to-use database handle.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client.Database(database), nil
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(_ string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateVal)
		},
		// A RoomNotFound/PlayerNotFound/RoomExists/... result is the store
		// doing its job correctly, not a sign Mongo is unhealthy. Without
		// this, a run of ordinary lookups against stale or mistyped ids
		// trips ReadyToTrip's default consecutive-failure count exactly
		// like a real outage would.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var coded gameerrors.Coded
			return errors.As(err, &coded)
		},
	})
}

func execute[T any](cb *gobreaker.CircuitBreaker, repo, op string, fn func() (T, error)) (T, error) {
	start := time.Now()
	res, err := cb.Execute(func() (interface{}, error) { return fn() })
	_ = start

	if err != nil {
		status := "error"
		if errors.Is(err, gobreaker.ErrOpenState) {
			metrics.CircuitBreakerFailures.WithLabelValues(repo).Inc()
		}
		metrics.StoreOperationsTotal.WithLabelValues(repo, op, status).Inc()

		var zero T
		return zero, err
	}

	metrics.StoreOperationsTotal.WithLabelValues(repo, op, "ok").Inc()
	return res.(T), nil
}

// RoomRepo persists Room documents.
type RoomRepo struct {
	col *mongo.Collection
	cb  *gobreaker.CircuitBreaker
}

// NewRoomRepo builds a RoomRepo over db.
func NewRoomRepo(db *mongo.Database) *RoomRepo {
	col := db.Collection(roomsCollection)
	ensureUniqueIndex(col, "room_id")
	return &RoomRepo{col: col, cb: newBreaker("store_room")}
}

// Add inserts a new room, translating a duplicate key into RoomExists.
func (r *RoomRepo) Add(ctx context.Context, room *types.Room) error {
	_, err := execute[struct{}](r.cb, "room", "add", func() (struct{}, error) {
		_, err := r.col.InsertOne(ctx, room)
		if mongo.IsDuplicateKeyError(err) {
			return struct{}{}, gameerrors.RoomExists(string(room.RoomID))
		}
		return struct{}{}, err
	})
	return translateBreakerErr(err)
}

// Get fetches a room by id.
func (r *RoomRepo) Get(ctx context.Context, roomID types.RoomID) (*types.Room, error) {
	return execute[*types.Room](r.cb, "room", "get", func() (*types.Room, error) {
		var room types.Room
		err := r.col.FindOne(ctx, bson.M{"room_id": roomID}).Decode(&room)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, gameerrors.RoomNotFound(string(roomID))
		}
		if err != nil {
			return nil, err
		}
		return &room, nil
	})
}

// Update persists changes to an existing room document.
func (r *RoomRepo) Update(ctx context.Context, room *types.Room) error {
	_, err := execute[struct{}](r.cb, "room", "update", func() (struct{}, error) {
		res, err := r.col.ReplaceOne(ctx, bson.M{"room_id": room.RoomID}, room)
		if err != nil {
			return struct{}{}, err
		}
		if res.MatchedCount == 0 {
			return struct{}{}, gameerrors.RoomNotFound(string(room.RoomID))
		}
		return struct{}{}, nil
	})
	return translateBreakerErr(err)
}

// Remove deletes a room document.
func (r *RoomRepo) Remove(ctx context.Context, roomID types.RoomID) error {
	_, err := execute[struct{}](r.cb, "room", "remove", func() (struct{}, error) {
		_, err := r.col.DeleteOne(ctx, bson.M{"room_id": roomID})
		return struct{}{}, err
	})
	return translateBreakerErr(err)
}

// GetAllRoomIDs returns the ids of every room not in a terminal state, used
// to guarantee id uniqueness on room creation (the room id doubles as the
// join code, so there is no separate short-code scheme to query).
func (r *RoomRepo) GetAllRoomIDs(ctx context.Context) ([]types.RoomID, error) {
	return execute[[]types.RoomID](r.cb, "room", "get_all_room_ids", func() ([]types.RoomID, error) {
		cur, err := r.col.Find(ctx, bson.M{
			"state": bson.M{"$nin": bson.A{types.RoomStateAbandoned, types.RoomStateFinished}},
		}, options.Find().SetProjection(bson.M{"room_id": 1}))
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)

		var ids []types.RoomID
		for cur.Next(ctx) {
			var doc struct {
				RoomID types.RoomID `bson:"room_id"`
			}
			if err := cur.Decode(&doc); err != nil {
				return nil, err
			}
			ids = append(ids, doc.RoomID)
		}
		return ids, cur.Err()
	})
}

// PlayerRepo persists Player documents.
type PlayerRepo struct {
	col *mongo.Collection
	cb  *gobreaker.CircuitBreaker
}

// NewPlayerRepo builds a PlayerRepo over db.
func NewPlayerRepo(db *mongo.Database) *PlayerRepo {
	col := db.Collection(playersCollection)
	ensureUniqueIndex(col, "player_id")
	return &PlayerRepo{col: col, cb: newBreaker("store_player")}
}

// Add inserts a new player, translating a duplicate key into PlayerExists.
func (p *PlayerRepo) Add(ctx context.Context, player *types.Player) error {
	_, err := execute[struct{}](p.cb, "player", "add", func() (struct{}, error) {
		_, err := p.col.InsertOne(ctx, player)
		if mongo.IsDuplicateKeyError(err) {
			return struct{}{}, gameerrors.PlayerExists(string(player.PlayerID))
		}
		return struct{}{}, err
	})
	return translateBreakerErr(err)
}

// Get fetches a player by id.
func (p *PlayerRepo) Get(ctx context.Context, playerID types.PlayerID) (*types.Player, error) {
	return execute[*types.Player](p.cb, "player", "get", func() (*types.Player, error) {
		var player types.Player
		err := p.col.FindOne(ctx, bson.M{"player_id": playerID}).Decode(&player)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, gameerrors.PlayerNotFound(string(playerID))
		}
		if err != nil {
			return nil, err
		}
		return &player, nil
	})
}

// Update persists changes to an existing player document.
func (p *PlayerRepo) Update(ctx context.Context, player *types.Player) error {
	_, err := execute[struct{}](p.cb, "player", "update", func() (struct{}, error) {
		res, err := p.col.ReplaceOne(ctx, bson.M{"player_id": player.PlayerID}, player)
		if err != nil {
			return struct{}{}, err
		}
		if res.MatchedCount == 0 {
			return struct{}{}, gameerrors.PlayerNotFound(string(player.PlayerID))
		}
		return struct{}{}, nil
	})
	return translateBreakerErr(err)
}

// Remove deletes a player document.
func (p *PlayerRepo) Remove(ctx context.Context, playerID types.PlayerID) error {
	_, err := execute[struct{}](p.cb, "player", "remove", func() (struct{}, error) {
		_, err := p.col.DeleteOne(ctx, bson.M{"player_id": playerID})
		return struct{}{}, err
	})
	return translateBreakerErr(err)
}

// GetAllInRoom returns every player currently attached to roomID.
func (p *PlayerRepo) GetAllInRoom(ctx context.Context, roomID types.RoomID) ([]types.Player, error) {
	return execute[[]types.Player](p.cb, "player", "get_all_in_room", func() ([]types.Player, error) {
		cur, err := p.col.Find(ctx, bson.M{"room_id": roomID})
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)

		var players []types.Player
		if err := cur.All(ctx, &players); err != nil {
			return nil, err
		}
		return players, nil
	})
}

// AllWithDisconnectedSince returns every player whose last-seen disconnect
// marker is older than cutoff, used by the admin disconnect sweep.
func (p *PlayerRepo) AllWithDisconnectedSince(ctx context.Context, cutoff time.Time) ([]types.Player, error) {
	return execute[[]types.Player](p.cb, "player", "sweep_query", func() ([]types.Player, error) {
		cur, err := p.col.Find(ctx, bson.M{
			"disconnected_at": bson.M{"$ne": nil, "$lte": cutoff},
		})
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)

		var players []types.Player
		if err := cur.All(ctx, &players); err != nil {
			return nil, err
		}
		return players, nil
	})
}

// GameStateRepo persists GameState documents.
type GameStateRepo struct {
	col *mongo.Collection
	cb  *gobreaker.CircuitBreaker
}

// NewGameStateRepo builds a GameStateRepo over db.
func NewGameStateRepo(db *mongo.Database) *GameStateRepo {
	col := db.Collection(gameStatesCollection)
	ensureUniqueIndex(col, "room_id")
	return &GameStateRepo{col: col, cb: newBreaker("store_game_state")}
}

// ensureUniqueIndex creates a unique index on field if it does not already
// exist. Errors are logged, not fatal: the server should still start and
// serve traffic against an already-indexed collection even if this call
// fails transiently (e.g. insufficient privileges in a shared cluster).
func ensureUniqueIndex(col *mongo.Collection, field string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		slog.Warn("failed to create unique index", "collection", col.Name(), "field", field, "error", err)
	}
}

// Add inserts a new game state, translating a duplicate key into GameStateExists.
func (g *GameStateRepo) Add(ctx context.Context, gs *types.GameState) error {
	_, err := execute[struct{}](g.cb, "game_state", "add", func() (struct{}, error) {
		_, err := g.col.InsertOne(ctx, gs)
		if mongo.IsDuplicateKeyError(err) {
			return struct{}{}, gameerrors.GameStateExists(string(gs.RoomID))
		}
		return struct{}{}, err
	})
	return translateBreakerErr(err)
}

// Get fetches game state by room id.
func (g *GameStateRepo) Get(ctx context.Context, roomID types.RoomID) (*types.GameState, error) {
	return execute[*types.GameState](g.cb, "game_state", "get", func() (*types.GameState, error) {
		var gs types.GameState
		err := g.col.FindOne(ctx, bson.M{"room_id": roomID}).Decode(&gs)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, gameerrors.GameStateNotFound(string(roomID))
		}
		if err != nil {
			return nil, err
		}
		return &gs, nil
	})
}

// Update persists the full game state document, e.g. after a FibbingIt
// round transition or a next-action/timer update.
func (g *GameStateRepo) Update(ctx context.Context, gs *types.GameState) error {
	_, err := execute[struct{}](g.cb, "game_state", "update", func() (struct{}, error) {
		res, err := g.col.ReplaceOne(ctx, bson.M{"room_id": gs.RoomID}, gs)
		if err != nil {
			return struct{}{}, err
		}
		if res.MatchedCount == 0 {
			return struct{}{}, gameerrors.GameStateNotFound(string(gs.RoomID))
		}
		return struct{}{}, nil
	})
	return translateBreakerErr(err)
}

// Remove deletes a game state document.
func (g *GameStateRepo) Remove(ctx context.Context, roomID types.RoomID) error {
	_, err := execute[struct{}](g.cb, "game_state", "remove", func() (struct{}, error) {
		_, err := g.col.DeleteOne(ctx, bson.M{"room_id": roomID})
		return struct{}{}, err
	})
	return translateBreakerErr(err)
}

func translateBreakerErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) {
		return gameerrors.ServerError("document store circuit breaker open")
	}
	return err
}
