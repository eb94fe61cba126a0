package mocks

//go:generate mockgen -destination=./mock_engineclient.go -package=mocks github.com/rxtech-lab/argo-monitor/internal/engineclient Client
//go:generate mockgen -destination=./mock_chat.go -package=mocks github.com/rxtech-lab/argo-monitor/internal/chat BotAPI
