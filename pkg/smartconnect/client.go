// Package smartconnect is a minimal Angel One SmartAPI client covering
// what the journal service needs: TOTP session generation, GTT rule
// creation for protective exits, and the order-status stream.
package smartconnect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

// Config configures the SmartAPI client.
type Config struct {
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string

	RootURL string        // default: https://apiconnect.angelone.in
	Timeout time.Duration // default: 7s
}

// Session holds the tokens returned by a successful login.
type Session struct {
	AccessToken  string `json:"jwtToken"`
	RefreshToken string `json:"refreshToken"`
	FeedToken    string `json:"feedToken"`
}

// SmartConnect is the HTTP client for SmartAPI endpoints.
type SmartConnect struct {
	apiKey      string
	clientCode  string
	password    string
	totpSecret  string
	accessToken string

	rootURL    string
	httpClient *http.Client

	clientLocalIP  string
	clientPublicIP string
	clientMAC      string
}

const defaultRoot = "https://apiconnect.angelone.in"

var routes = map[string]string{
	"api.login":      "/rest/auth/angelbroking/user/v1/loginByPassword",
	"api.logout":     "/rest/secure/angelbroking/user/v1/logout",
	"api.gtt.create": "/gtt-service/rest/secure/angelbroking/gtt/v1/createRule",
	"api.order.book": "/rest/secure/angelbroking/order/v1/getOrderBook",
}

// New initializes the client.
func New(cfg Config) *SmartConnect {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}

	localIP := "127.0.0.1"
	if ip, err := resolveLocalIP(); err == nil {
		localIP = ip
	}

	return &SmartConnect{
		apiKey:         cfg.APIKey,
		clientCode:     cfg.ClientCode,
		password:       cfg.Password,
		totpSecret:     cfg.TOTPSecret,
		rootURL:        strings.TrimRight(cfg.RootURL, "/"),
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		clientLocalIP:  localIP,
		clientPublicIP: localIP,
		clientMAC:      resolveMAC(),
	}
}

// SetAccessToken installs a previously persisted token so the client
// can skip login while the token is still valid.
func (sc *SmartConnect) SetAccessToken(token string) { sc.accessToken = token }

// AccessToken returns the current session token.
func (sc *SmartConnect) AccessToken() string { return sc.accessToken }

// GenerateSessionTOTP logs in with the configured credentials, deriving
// the one-time password from the TOTP secret at call time.
func (sc *SmartConnect) GenerateSessionTOTP() (Session, error) {
	code, err := totp.GenerateCode(sc.totpSecret, time.Now())
	if err != nil {
		return Session{}, fmt.Errorf("smartconnect: totp: %w", err)
	}

	var resp struct {
		Status  bool    `json:"status"`
		Message string  `json:"message"`
		Data    Session `json:"data"`
	}
	err = sc.post(routes["api.login"], map[string]any{
		"clientcode": sc.clientCode,
		"password":   sc.password,
		"totp":       code,
	}, &resp)
	if err != nil {
		return Session{}, fmt.Errorf("smartconnect: login: %w", err)
	}
	if !resp.Status || resp.Data.AccessToken == "" {
		return Session{}, fmt.Errorf("smartconnect: login rejected: %s", resp.Message)
	}

	sc.accessToken = resp.Data.AccessToken
	return resp.Data, nil
}

// GTTSellParams describes a single-trigger GTT sell rule.
type GTTSellParams struct {
	TradingSymbol string
	SymbolToken   string
	Exchange      string
	Qty           int64
	LastPrice     float64 // price the rule is armed against
	TriggerPrice  float64
	LimitPrice    float64
}

// CreateGTTSell places a single-trigger protective sell rule and
// returns the rule ID.
func (sc *SmartConnect) CreateGTTSell(p GTTSellParams) (string, error) {
	var resp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	err := sc.post(routes["api.gtt.create"], map[string]any{
		"tradingsymbol":   p.TradingSymbol,
		"symboltoken":     p.SymbolToken,
		"exchange":        p.Exchange,
		"transactiontype": "SELL",
		"producttype":     "DELIVERY",
		"triggertype":     "SINGLE",
		"price":           p.LimitPrice,
		"triggerprice":    p.TriggerPrice,
		"qty":             p.Qty,
		"timeperiod":      365,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("smartconnect: gtt create: %w", err)
	}
	if !resp.Status {
		return "", fmt.Errorf("smartconnect: gtt rejected: %s", resp.Message)
	}
	return resp.Data.ID.String(), nil
}

func (sc *SmartConnect) post(route string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, sc.rootURL+route, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-UserType", "USER")
	req.Header.Set("X-SourceID", "WEB")
	req.Header.Set("X-ClientLocalIP", sc.clientLocalIP)
	req.Header.Set("X-ClientPublicIP", sc.clientPublicIP)
	req.Header.Set("X-MACAddress", sc.clientMAC)
	req.Header.Set("X-PrivateKey", sc.apiKey)
	if sc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.accessToken)
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}

// resolveLocalIP finds a non-loopback IPv4 address.
func resolveLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, address := range addrs {
		if ipNet, ok := address.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ipNet.IP.To4() != nil {
				return ipNet.IP.String(), nil
			}
		}
	}
	return "", fmt.Errorf("no local IP found")
}

func resolveMAC() string {
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagLoopback == 0 && len(iface.HardwareAddr) > 0 {
				return iface.HardwareAddr.String()
			}
		}
	}
	return "00:00:00:00:00:00"
}
