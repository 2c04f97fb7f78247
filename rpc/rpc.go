package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/triad/logger"
	"github.com/wfunc/triad/matchmaking"
	"github.com/wfunc/triad/services"
)

const callTimeout = 10 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers every receiver in services.
func NewServer(addr string, services ...interface{}) (*Server, error) {
	srv := rpc.NewServer()
	for _, svc := range services {
		if err := srv.Register(svc); err != nil {
			return nil, err
		}
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// MatchService exposes queue and match administration to trusted
// back-office callers.
type MatchService struct {
	matchmaking *matchmaking.Service
	players     *services.PlayerService
}

func NewMatchService(mm *matchmaking.Service, ps *services.PlayerService) *MatchService {
	return &MatchService{matchmaking: mm, players: ps}
}

type UserArgs struct {
	UserID int64
}

type QueueReply struct {
	Status  string
	MatchID string
}

type CreateMatchArgs struct {
	Player1ID int64
	Player2ID int64
}

type CreateMatchReply struct {
	MatchID string
}

type HandArgs struct {
	MatchID string
	UserID  int64
}

type HandReply struct {
	Hand matchmaking.HandView
}

type Ack struct {
	OK bool
}

func queueReply(res matchmaking.Result, reply *QueueReply) {
	reply.Status = string(res.Status)
	reply.MatchID = res.MatchID
}

func (ms *MatchService) JoinQueue(args *UserArgs, reply *QueueReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	res, err := ms.matchmaking.Join(ctx, args.UserID)
	if err != nil {
		return err
	}
	queueReply(res, reply)
	return nil
}

func (ms *MatchService) LeaveQueue(args *UserArgs, reply *QueueReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	res, err := ms.matchmaking.Leave(ctx, args.UserID)
	if err != nil {
		return err
	}
	queueReply(res, reply)
	return nil
}

func (ms *MatchService) QueueStatus(args *UserArgs, reply *QueueReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	res, err := ms.matchmaking.Status(ctx, args.UserID)
	if err != nil {
		return err
	}
	queueReply(res, reply)
	return nil
}

// CreateMatch pairs two players directly, skipping the queue.
func (ms *MatchService) CreateMatch(args *CreateMatchArgs, reply *CreateMatchReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	m, err := ms.matchmaking.CreateMatch(ctx, args.Player1ID, args.Player2ID)
	if err != nil {
		return err
	}
	reply.MatchID = m.ID
	return nil
}

func (ms *MatchService) Hand(args *HandArgs, reply *HandReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	h, err := ms.matchmaking.Hand(ctx, args.MatchID, args.UserID)
	if err != nil {
		return err
	}
	reply.Hand = *h
	return nil
}

// PlayerCreated grants starter cards to a freshly registered user.
func (ms *MatchService) PlayerCreated(args *UserArgs, reply *Ack) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := ms.players.OnPlayerCreated(ctx, args.UserID); err != nil {
		return err
	}
	reply.OK = true
	return nil
}
