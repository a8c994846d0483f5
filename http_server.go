// HTTP Server

package main

import (
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
)

// MediaGateway - Status data of the server.
// Resolves credentials and gates every catalog
// and media request on the access filter.
type MediaGateway struct {
	// Collaborators
	catalog  *CatalogStore
	sessions SessionStore
	oauth    *oauth2.Config

	// Config
	videoPath string
	reqCount  uint64
	ipLimit   uint32

	// Sync
	mutexReqCount *sync.Mutex
	mutexIpCount  *sync.Mutex

	// Status
	ipCount map[string]uint32
}

func (gateway *MediaGateway) init() {
	// Mutex
	gateway.mutexReqCount = &sync.Mutex{}
	gateway.mutexIpCount = &sync.Mutex{}

	// Status
	gateway.reqCount = 0
	gateway.ipCount = make(map[string]uint32)

	// Config
	gateway.ipLimit = 4
	custom_ip_limit := os.Getenv("MAX_IP_CONCURRENT_REQUESTS")
	if custom_ip_limit != "" {
		cil, e := strconv.Atoi(custom_ip_limit)
		if e == nil {
			gateway.ipLimit = uint32(cil)
		}
	}
}

// Generates unique ID for each request
func (gateway *MediaGateway) getRequestID() uint64 {
	gateway.mutexReqCount.Lock()
	defer gateway.mutexReqCount.Unlock()

	gateway.reqCount++

	return gateway.reqCount
}

// Adds IP address to the list of active media transfers
// Returns false if the limit has been reached
func (gateway *MediaGateway) AddIP(ip string) bool {
	gateway.mutexIpCount.Lock()
	defer gateway.mutexIpCount.Unlock()

	c := gateway.ipCount[ip]

	if c >= gateway.ipLimit {
		return false
	}

	gateway.ipCount[ip] = c + 1

	return true
}

// Checks if an IP is exempted from the limit
func (gateway *MediaGateway) isIPExempted(ipStr string) bool {
	r := os.Getenv("CONCURRENT_LIMIT_WHITELIST")

	if r == "" {
		return false
	}

	if r == "*" {
		return true
	}

	ip := net.ParseIP(ipStr)

	parts := strings.Split(r, ",")

	for i := 0; i < len(parts); i++ {
		_, rang, e := net.ParseCIDR(parts[i])

		if e != nil {
			LogError(e)
			continue
		}

		if rang.Contains(ip) {
			return true
		}
	}

	return false
}

// Removes an IP from the list
func (gateway *MediaGateway) RemoveIP(ip string) {
	gateway.mutexIpCount.Lock()
	defer gateway.mutexIpCount.Unlock()

	c := gateway.ipCount[ip]

	if c <= 1 {
		delete(gateway.ipCount, ip)
	} else {
		gateway.ipCount[ip] = c - 1
	}
}

// statusRecorder captures the status code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(status int) {
	recorder.status = status
	recorder.ResponseWriter.WriteHeader(status)
}

// requestLog assigns each request an id, logs it and counts it.
func (gateway *MediaGateway) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		reqId := gateway.getRequestID()

		ip, _, err := net.SplitHostPort(req.RemoteAddr)
		if err != nil {
			ip = req.RemoteAddr
		}

		LogRequest(reqId, ip, req.Method+" "+req.RequestURI)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, req)

		metricRequests.WithLabelValues(req.Method, strconv.Itoa(recorder.status)).Inc()
	})
}

// recoverPanic turns an unhandled failure into a generic error
// response. Internal detail goes to the log, never to the client.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if r := recover(); r != nil {
				switch x := r.(type) {
				case string:
					LogError(errors.New(x))
				case error:
					LogError(x)
				default:
					LogError(errors.New("unexpected error"))
				}
				writeJSONError(w, http.StatusInternalServerError, "unexpected error")
			}
		}()

		next.ServeHTTP(w, req)
	})
}

// corsVideos sets the CORS headers the players expect on
// the catalog and media endpoints.
func corsVideos(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		origin := req.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, req)
	})
}

// Router builds the request pipeline.
func (gateway *MediaGateway) Router() http.Handler {
	router := chi.NewRouter()

	router.Use(gateway.requestLog)
	router.Use(recoverPanic)

	router.Get("/", func(w http.ResponseWriter, req *http.Request) {
		writeJSONError(w, http.StatusOK, "nothing to see here")
	})

	router.Get("/login", gateway.HandleLogin)
	router.Get("/callback", gateway.HandleCallback)
	router.Get("/logout", gateway.HandleLogout)

	router.Handle("/metrics", promhttp.Handler())

	router.With(corsVideos, gateway.RequireSubject).Get("/videos", gateway.HandleVideoIndex)
	router.With(corsVideos, gateway.RequireSubject).Get("/videos/{classroom}/*", gateway.HandleMediaFile)

	return router
}

// Runs secure HTTPs server
func (gateway *MediaGateway) runHTTPSecureServer(wg *sync.WaitGroup, handler http.Handler) {
	defer func() {
		wg.Done()
	}()

	bind_addr := os.Getenv("BIND_ADDRESS")

	// Setup HTTPS server
	var ssl_port int
	ssl_port = 443
	customSSLPort := os.Getenv("SSL_PORT")
	if customSSLPort != "" {
		sslp, e := strconv.Atoi(customSSLPort)
		if e == nil {
			ssl_port = sslp
		}
	}

	certFile := os.Getenv("SSL_CERT")
	keyFile := os.Getenv("SSL_KEY")

	if certFile != "" && keyFile != "" {
		// Listen
		LogInfo("[SSL] Listening on " + bind_addr + ":" + strconv.Itoa(ssl_port))
		errSSL := http.ListenAndServeTLS(bind_addr+":"+strconv.Itoa(ssl_port), certFile, keyFile, handler)

		if errSSL != nil {
			LogError(errSSL)
		}
	}
}

// Runs HTTP server
func (gateway *MediaGateway) runHTTPServer(wg *sync.WaitGroup, handler http.Handler) {
	defer func() {
		wg.Done()
	}()

	bind_addr := os.Getenv("BIND_ADDRESS")

	// Setup HTTP server
	var tcp_port int
	tcp_port = 80
	customTCPPort := os.Getenv("HTTP_PORT")
	if customTCPPort != "" {
		tcpp, e := strconv.Atoi(customTCPPort)
		if e == nil {
			tcp_port = tcpp
		}
	}

	// Listen
	LogInfo("[HTTP] Listening on " + bind_addr + ":" + strconv.Itoa(tcp_port))
	errHTTP := http.ListenAndServe(bind_addr+":"+strconv.Itoa(tcp_port), handler)

	if errHTTP != nil {
		LogError(errHTTP)
	}
}

// Runs the gateway
func (gateway *MediaGateway) run() {
	handler := gateway.Router()

	var wg sync.WaitGroup

	wg.Add(2)

	go gateway.runHTTPServer(&wg, handler)
	go gateway.runHTTPSecureServer(&wg, handler)

	wg.Wait()
}
