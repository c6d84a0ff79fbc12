package modbus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/goburrow/modbus"
)

// SendResponse is the bridge's reply to one RTU request.
type SendResponse struct {
	ADUResponse []byte
	Error       string
}

// HTTPHandler frames requests as RTU and sends them to a bridge. The
// embedded RTU handler is only used for framing.
type HTTPHandler struct {
	*modbus.RTUClientHandler

	baseURL  string
	password string
	client   *http.Client
}

func NewHTTPHandler(baseURL, password string, slaveID byte) *HTTPHandler {
	h := modbus.NewRTUClientHandler("/dev/null")
	h.SlaveId = slaveID
	return &HTTPHandler{
		RTUClientHandler: h,
		baseURL:          baseURL,
		password:         password,
		client:           http.DefaultClient,
	}
}

func (c *HTTPHandler) Send(aduRequest []byte) ([]byte, error) {
	req, err := http.NewRequest("POST", c.baseURL, bytes.NewReader(aduRequest))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.password != "" {
		req.SetBasicAuth("", c.password)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("bad status code: %s\n%s", resp.Status, string(body))
	}
	var sendResponse SendResponse
	if err := json.Unmarshal(body, &sendResponse); err != nil {
		return nil, err
	}
	if sendResponse.Error != "" {
		err = errors.New(sendResponse.Error)
	}
	return sendResponse.ADUResponse, err
}

func (c *HTTPHandler) Connect() error {
	return nil
}

func (c *HTTPHandler) Close() error {
	return nil
}

// Transporter sends a raw RTU request. *modbus.RTUClientHandler implements
// it.
type Transporter interface {
	Send(aduRequest []byte) ([]byte, error)
}

// Bridge serves RTU requests posted by an HTTPHandler.
type Bridge struct {
	Transporter Transporter
	// Password is required as the basic auth password when set.
	Password string
}

func (s *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.Password != "" {
		_, pass, ok := r.BasicAuth()
		if !ok || pass != s.Password {
			http.Error(w, "wrong password", http.StatusUnauthorized)
			return
		}
	}
	err := func() error {
		aduRequest, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		aduResponse, err := s.Transporter.Send(aduRequest)
		var errString string
		if err != nil {
			errString = err.Error()
		}
		body, err := json.Marshal(&SendResponse{
			ADUResponse: aduResponse,
			Error:       errString,
		})
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	}()
	if err != nil {
		log.Printf("bridge: %v", err)
		http.Error(w, err.Error(), 500)
	}
}
