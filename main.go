package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"caronachat/api"
	"caronachat/auth"
	"caronachat/database"
	"caronachat/models"
	"caronachat/realtime"
	"caronachat/session"
	"caronachat/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	wsURL := os.Getenv("CHAT_WS_URL")
	if wsURL == "" {
		wsURL = "ws://localhost:8080/ws/chat"
	}

	apiURL := os.Getenv("CHAT_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	token := os.Getenv("CHAT_TOKEN")
	if token == "" {
		log.Fatal("CHAT_TOKEN environment variable is required")
	}

	userID, err := strconv.ParseInt(os.Getenv("CHAT_USER_ID"), 10, 64)
	if err != nil {
		log.Fatal("CHAT_USER_ID must be a numeric user id")
	}

	dbPath := os.Getenv("CHAT_DB")
	if dbPath == "" {
		dbPath = "carona-chat.db"
	}

	history, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open message archive: %v", err)
	}
	defer history.Close()

	authState := auth.NewState()
	st := store.New()
	manager := realtime.NewManager(wsURL)
	apiClient := api.NewClient(apiURL, authState.Token)
	sess := session.New(manager, st, authState, apiClient, history)

	// Print delivered messages alongside the session's own handling.
	manager.OnMessage(func(env models.Envelope) {
		if env.Tipo == models.TipoMensagemRecebida && env.Mensagem != nil {
			fmt.Printf("[%d] %s\n", env.Mensagem.ConversationID, env.Mensagem.Message)
		}
	})
	manager.OnConnectionChange(func(connected bool) {
		if connected {
			log.Println("Connected")
		} else {
			log.Println("Disconnected, reconnecting...")
		}
	})

	log.Printf("🚀 Carona chat client starting (ws: %s)", wsURL)

	authState.Login(token, userID)

	if err := sess.LoadConversations(context.Background()); err != nil {
		log.Printf("Failed to load conversations: %v", err)
	}
	for _, c := range st.Conversations() {
		fmt.Printf("conversation %d: %s (%d unread)\n", c.ID, c.LastBody, c.UnreadCount)
	}

	log.Printf("Logged in as user %d. Type \"<conversation> <message>\" to send, Ctrl-D to quit.", userID)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			fmt.Println("usage: <conversation> <message>")
			continue
		}
		convID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			fmt.Println("conversation must be a numeric ride-request id")
			continue
		}

		sess.SetActiveConversation(convID)
		if err := sess.SendMessage(convID, nil, parts[1]); err != nil {
			log.Printf("Send failed: %v", err)
		}
	}

	authState.Logout()
}
