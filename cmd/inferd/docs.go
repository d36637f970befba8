package main

// General API documentation for swaggo. Run `make swagger-gen` to regenerate
// internal/apidocs.
//
// @title           inferd API
// @version         1.0
// @description     HTTP API for model caching and inference.
//
// @contact.name   inferd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
