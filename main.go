package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/carevista/practicebackend/lib/mypublisher"
	"github.com/carevista/practicebackend/lib/mypubsub"
	"github.com/carevista/practicebackend/lib/myqueue"
	"github.com/carevista/practicebackend/lib/mytime"
	"github.com/carevista/practicebackend/lib/myvault"
	"github.com/carevista/practicebackend/services/credentials"
	"github.com/carevista/practicebackend/services/oauth"
	"github.com/carevista/practicebackend/services/oauth/providers"
	"github.com/carevista/practicebackend/services/oauth/statestore"
	"github.com/carevista/practicebackend/services/oauth/tokenclient"
	"github.com/carevista/practicebackend/services/telehealth"
	"github.com/carevista/practicebackend/services/vendors"
)

func main() {
	c := context.Background()

	router := mux.NewRouter()
	nower := mytime.RealNower{}

	credentialsVault, vaultCleanup, err := myvault.New[credentials.ProviderCredential](c)
	if err != nil {
		log.Fatalf("Error creating credentials vault: %s", err)
	}
	defer vaultCleanup()

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		log.Fatalf("Error creating task queue: %s", err)
	}
	defer queueCleanup()

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}
	defer pubsubCleanup()

	publisher, publisherCleanup, err := mypublisher.New(c, pubsub, queue, nower)
	if err != nil {
		log.Fatalf("Error creating publisher: %s", err)
	}
	defer publisherCleanup()
	publisher.RegisterEndpoints(c, router)

	registry := providers.NewRegistry()

	oauthService := oauth.NewService(credentialsVault, statestore.NewInMemoryStateStore(),
		statestore.NewRandomTokener(), registry, tokenclient.NewOAuthClient(registry), nower, queue, publisher)
	err = oauthService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering oauth endpoints: %s", err)
	}

	vendorService := vendors.NewService(vendors.NewManager(credentialsVault, nower), publisher)
	err = vendorService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering vendor endpoints: %s", err)
	}

	telehealth.NewService(credentialsVault, nower).RegisterEndpoints(c, router)

	startWebServerBlocking(router)
}

func startWebServerBlocking(router *mux.Router) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting webserver on port %s (try http://localhost:%s)", port, port)
	err := http.ListenAndServe(fmt.Sprintf(":%s", port), router)
	if err != nil {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
