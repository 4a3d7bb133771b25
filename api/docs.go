package api

// @title Tablature API
// @version v1.0.0
// @description Config and row endpoints backing the browser Table widget.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8790
// @BasePath /api
// @schemes http
