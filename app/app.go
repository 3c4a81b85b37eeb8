package app

import (
	"github.com/kentoooo/mellowq/config"
	"github.com/kentoooo/mellowq/push"
	"github.com/kentoooo/mellowq/service"
)

// App is what every controller closes over.
type App struct {
	*service.Service
	Push *push.Dispatcher
	config.Config
}
