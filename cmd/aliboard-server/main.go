package main

import (
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/aliboard/aliboard-server/auth"
	"github.com/aliboard/aliboard-server/board"
	"github.com/aliboard/aliboard-server/config"
	"github.com/aliboard/aliboard-server/globals"
	"github.com/aliboard/aliboard-server/persistence"
	"github.com/aliboard/aliboard-server/presence"
	"github.com/aliboard/aliboard-server/signaling"
	"github.com/aliboard/aliboard-server/types"
	"github.com/aliboard/aliboard-server/ws"
	"github.com/folkengine/goname"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key (optional)")

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	globalConfig *config.Config
	persister    persistence.Persister
	boardStore   *board.Store

	hubs     = make(map[string]*ws.Hub)
	hubsLock sync.RWMutex
)

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	var err error
	globalConfig, err = config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	persister, err = persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}

	boardStore, err = board.NewStore(globalConfig.BoardConfig.RoomLimit(), persister, globals.AppLogger)
	if err != nil {
		panic(err)
	}

	signalingCache, err := signaling.NewCache(globalConfig)
	if err != nil {
		panic(err)
	}

	tracker := presence.NewTracker()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		globals.AppLogger.Info("interrupted, flushing state")
		boardStore.Flush()
		signalingCache.Close()
		if persister != nil {
			persister.Close()
		}
		os.Exit(0)
	}()

	cronRunner := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err = cronRunner.AddFunc("@every 10m", func() {
		removed := tracker.Sweep(time.Now(), globalConfig.PresenceConfig.MaxAge())
		if removed > 0 {
			globals.AppLogger.Info("swept stale presence records", "removed", removed)
		}
	})
	if err != nil {
		panic(err)
	}
	_, err = cronRunner.AddFunc("@every 5m", boardStore.Flush)
	if err != nil {
		panic(err)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	signalingHandler := &signaling.Handler{
		Cache:    signalingCache,
		Identify: identifyId,
		Logger:   globals.AppLogger,
	}
	presenceHandler := &presence.Handler{
		Tracker:   tracker,
		Persister: persister,
		Cfg:       globalConfig,
		Identify:  identifyUser,
		Logger:    globals.AppLogger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws/board/{room:[a-zA-Z0-9_-]+}", websocketHandler).Methods(http.MethodGet)
	signalingHandler.Register(router)
	presenceHandler.Register(router)
	http.Handle("/", router)

	globals.AppLogger.Info("listening", "addr", *addr)
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, nil)
	} else {
		err = http.ListenAndServe(*addr, nil)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}

// identifyId resolves the authenticated user id of a plain HTTP request, ""
// when the request carries no valid token.
func identifyId(r *http.Request) string {
	vals := r.URL.Query()
	idToken := vals.Get("id_token")
	provider := vals.Get("provider")
	if idToken == "" || provider == "" {
		return ""
	}
	userId, err := auth.Authenticate(idToken, provider, globalConfig)
	if err != nil {
		return ""
	}
	return userId
}

func identifyUser(r *http.Request) *types.User {
	userId := identifyId(r)
	if userId == "" {
		return nil
	}
	user := &types.User{Id: userId, Nick: userId}
	if persister != nil {
		if err := persister.GetUser(user); err != nil && err != persistence.ErrNotFound {
			globals.AppLogger.Error("could not load user", "user", userId, "error", err)
		}
	}
	return user
}

// getHub returns the hub of a room, creating it (and its run loop) lazily on
// first connection.
func getHub(room *types.Room) *ws.Hub {
	hubsLock.RLock()
	if hub, ok := hubs[room.Id]; ok {
		hubsLock.RUnlock()
		return hub
	}
	hubsLock.RUnlock()

	hubsLock.Lock()
	defer hubsLock.Unlock()
	if hub, ok := hubs[room.Id]; ok {
		return hub
	}
	hub := ws.NewHub(room, globalConfig, boardStore, persister)
	hubs[room.Id] = hub
	go hub.Run()
	return hub
}

// Handle incoming websockets
func websocketHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomName := vars["room"]
	if roomName == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// the durable room record carries the roster; a room connected to for
	// the first time has none and stays open
	room := &types.Room{Id: roomName, Tags: make(map[string]string)}
	if persister != nil {
		if err := persister.GetRoom(room); err != nil && err != persistence.ErrNotFound {
			globals.AppLogger.Error("could not load room record", "room", roomName, "error", err)
		}
	}

	userId := identifyId(r)
	user := &types.User{Id: userId, Nick: userId, Role: room.RoleOf(userId)}
	if userId == "" {
		// guests get a generated display name and never enter the
		// unicast registry
		nick := goname.New(goname.FantasyMap).FirstLast() + " (guest)"
		user = &types.User{Id: nick, Nick: nick, Role: types.RoleGuest}
	} else if persister != nil {
		err := persister.GetUser(user)
		if err == persistence.ErrNotFound {
			user.LastOnline = time.Now()
			if err := persister.StoreUser(*user); err != nil {
				globals.AppLogger.Error("could not store user", "user", userId, "error", err)
			}
		} else if err != nil {
			globals.AppLogger.Error("could not load user", "user", userId, "error", err)
		}
		user.Role = room.RoleOf(userId)
	}

	if !auth.IsParticipant(user, roomName, persister) {
		globals.AppLogger.Info("connection refused, not a participant", "room", roomName, "user", user.Id)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	hub := getHub(room)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close() //nolint

	doneChan := make(chan struct{})
	client := ws.NewClient(hub, conn, user, doneChan)

	client.Add(1)
	hub.Register <- client
	client.Wait()
	defer func() {
		hub.Unregister <- client
	}()

	client.Add(2)
	go client.ReadLoop()
	go client.WriteLoop()

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go client.SendReplay(wg)
	wg.Wait()

	<-doneChan
	globals.AppLogger.Debug("connection closed", "room", roomName, "user", user.Id)
}
