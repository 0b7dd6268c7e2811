package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saaslab/org-management-system/shared/utils"
)

// ServiceClient handles HTTP communication with a backing service
type ServiceClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// ServiceClients holds the clients for all backing services
type ServiceClients struct {
	OrganizationService *ServiceClient
	AuthService         *ServiceClient
}

// NewServiceClient creates a new service client
func NewServiceClient(name, baseURL string) *ServiceClient {
	return &ServiceClient{
		name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ProxyRequest forwards the request to the backing service unchanged and
// relays its response. Authentication is enforced by the services
// themselves, so the gateway adds nothing to the request.
func (sc *ServiceClient) ProxyRequest(c *gin.Context) {
	targetURL := sc.baseURL + c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	var body io.Reader
	if c.Request.Body != nil {
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to read request body")
			return
		}
		body = bytes.NewBuffer(bodyBytes)
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, body)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to create request")
		return
	}
	for key, values := range c.Request.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		utils.ServiceUnavailableResponse(c, fmt.Sprintf("Failed to reach %s", sc.name))
		return
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to read response")
		return
	}

	for key, values := range resp.Header {
		for _, value := range values {
			c.Header(key, value)
		}
	}
	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), responseBody)
}

// HealthCheck checks if the backing service is healthy
func (sc *ServiceClient) HealthCheck() error {
	req, err := http.NewRequest(http.MethodGet, sc.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned status %d", resp.StatusCode)
	}
	return nil
}

// GetServiceStatus returns the health of all backing services
func (scs *ServiceClients) GetServiceStatus() map[string]interface{} {
	status := make(map[string]interface{})
	for _, sc := range []*ServiceClient{scs.OrganizationService, scs.AuthService} {
		if err := sc.HealthCheck(); err != nil {
			status[sc.name] = map[string]interface{}{"healthy": false, "error": err.Error()}
		} else {
			status[sc.name] = map[string]interface{}{"healthy": true}
		}
	}
	return status
}
