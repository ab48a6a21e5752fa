package handlers

import (
	"encoding/json"
	"net/http"
)

// GetDocs returns the OpenAPI 3.0 specification for the NTL platform API
func (h *GridHandler) GetDocs(w http.ResponseWriter, r *http.Request) {
	periodParam := map[string]interface{}{
		"name":        "period",
		"in":          "query",
		"description": "Billing period (YYYY-MM, default: previous month)",
		"required":    false,
		"schema":      map[string]string{"type": "string", "format": "year-month"},
	}
	pageParam := map[string]interface{}{
		"name":        "page",
		"in":          "query",
		"description": "Page number (default: 1)",
		"required":    false,
		"schema":      map[string]interface{}{"type": "integer", "default": 1},
	}
	limitParam := map[string]interface{}{
		"name":        "limit",
		"in":          "query",
		"description": "Records per page (default: 100, max: 1000)",
		"required":    false,
		"schema":      map[string]interface{}{"type": "integer", "default": 100},
	}
	idParam := func(desc string) map[string]interface{} {
		return map[string]interface{}{
			"name":        "id",
			"in":          "path",
			"description": desc,
			"required":    true,
			"schema":      map[string]string{"type": "string"},
		}
	}
	okResponse := map[string]interface{}{
		"200": map[string]interface{}{"description": "Successful response"},
	}
	createdResponse := map[string]interface{}{
		"201": map[string]interface{}{"description": "Resource created"},
		"400": map[string]interface{}{"description": "Invalid payload"},
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "NTL Platform API",
			"description": "Hierarchical energy-balance validation and non-technical-loss risk ranking for distribution grids",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "NTL Platform Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/feeders": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "List feeders",
					"parameters": []map[string]interface{}{pageParam, limitParam},
					"responses":  okResponse,
				},
				"post": map[string]interface{}{
					"summary":     "Provision a feeder",
					"description": "Creates a feeder; billed energy may never exceed purchased energy",
					"responses":   createdResponse,
				},
			},
			"/api/transformers": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Provision a transformer",
					"description": "Creates a transformer under an existing feeder; output may never exceed input",
					"responses":   createdResponse,
				},
			},
			"/api/customers": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":   "Provision a customer",
					"responses": createdResponse,
				},
			},
			"/api/feeders/{id}/balance": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Feeder energy balance",
					"description": "Compare purchased energy against the sum of transformer inputs for one period",
					"parameters":  []map[string]interface{}{idParam("Feeder ID"), periodParam},
					"responses":   okResponse,
				},
			},
			"/api/feeders/{id}/transformers": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "List transformers on a feeder",
					"parameters": []map[string]interface{}{idParam("Feeder ID"), pageParam, limitParam},
					"responses":  okResponse,
				},
			},
			"/api/transformers/{id}/balance": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Transformer energy balance",
					"description": "Unexplained loss = input - customer consumption - technical losses",
					"parameters":  []map[string]interface{}{idParam("Transformer ID"), periodParam},
					"responses":   okResponse,
				},
			},
			"/api/transformers/{id}/score": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Transformer risk score",
					"parameters": []map[string]interface{}{idParam("Transformer ID"), periodParam},
					"responses":  okResponse,
				},
			},
			"/api/transformers/{id}/customers": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "List customers on a transformer",
					"parameters": []map[string]interface{}{idParam("Transformer ID"), pageParam, limitParam},
					"responses":  okResponse,
				},
			},
			"/api/customers/{id}/score": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Customer risk score",
					"description": "Risk score, NTL confidence, and estimated loss for one customer",
					"parameters":  []map[string]interface{}{idParam("Customer ID"), periodParam},
					"responses":   okResponse,
				},
			},
			"/api/customers/{id}/readings": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Customer consumption history",
					"parameters": []map[string]interface{}{
						idParam("Customer ID"),
						{
							"name":        "start_period",
							"in":          "query",
							"description": "Earliest billing period (YYYY-MM)",
							"required":    false,
							"schema":      map[string]string{"type": "string", "format": "year-month"},
						},
						{
							"name":        "end_period",
							"in":          "query",
							"description": "Latest billing period (YYYY-MM)",
							"required":    false,
							"schema":      map[string]string{"type": "string", "format": "year-month"},
						},
						pageParam, limitParam,
					},
					"responses": okResponse,
				},
				"post": map[string]interface{}{
					"summary":     "Record a consumption reading",
					"description": "Records one billed month (period, kwh_consumed, billing_amount) for a customer",
					"parameters":  []map[string]interface{}{idParam("Customer ID")},
					"responses":   createdResponse,
				},
			},
			"/api/customers/{id}/inspections": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Customer inspection history",
					"parameters": []map[string]interface{}{idParam("Customer ID"), pageParam, limitParam},
					"responses":  okResponse,
				},
			},
			"/api/inspections": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Record a field inspection",
					"description": "Records an inspection outcome and updates the customer's last-inspected fields",
					"responses": map[string]interface{}{
						"201": map[string]interface{}{"description": "Inspection recorded"},
						"400": map[string]interface{}{"description": "Invalid inspection payload"},
					},
				},
			},
			"/api/hotlist": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Theft-suspicion hotlist",
					"description": "Customers ranked by NTL confidence times estimated monetary loss",
					"parameters": []map[string]interface{}{
						{
							"name":        "min_risk_level",
							"in":          "query",
							"description": "Minimum risk level to include (default: high)",
							"required":    false,
							"schema": map[string]interface{}{
								"type": "string",
								"enum": []string{"low", "medium", "high", "critical"},
							},
						},
						pageParam, limitParam,
					},
					"responses": okResponse,
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check API and database connectivity",
					"responses":   okResponse,
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses":   okResponse,
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
