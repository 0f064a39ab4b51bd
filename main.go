// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/AleutianAI/huddle/agents"
	"github.com/AleutianAI/huddle/hub"
	"github.com/AleutianAI/huddle/memory"
	"github.com/AleutianAI/huddle/observability"
	"github.com/AleutianAI/huddle/routes"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer(otelEndpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("huddle-hub")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	defaultPort := os.Getenv("PORT")
	if defaultPort == "" {
		defaultPort = "3000"
	}

	port := pflag.String("port", defaultPort, "port to listen on")
	sessionID := pflag.String("session", "", "existing session id to resume (seeds history)")
	demoAgents := pflag.Bool("demo-agents", os.Getenv("ENABLE_DEMO_AGENTS") != "false",
		"start the built-in demo agents")
	pflag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); otelEndpoint != "" {
		cleanup, err := initTracer(otelEndpoint)
		if err != nil {
			log.Fatalf("failed to setup the OTLP tracer: %v", err)
		}
		defer cleanup(context.Background())
	}

	resumed := *sessionID != ""
	session := *sessionID
	if session == "" {
		session = fmt.Sprintf("huddle-%d", time.Now().UnixMilli())
	}
	slog.Info("Hub session", "sessionID", session, "resumed", resumed)

	memoryClient, err := memory.NewHTTPClient(session)
	if err != nil {
		log.Fatalf("Failed to create memory service client: %v", err)
	}

	metrics := observability.InitMetrics()

	h, err := hub.New(hub.Config{
		SessionID: session,
		Memory:    memoryClient,
		Metrics:   metrics,
	})
	if err != nil {
		log.Fatalf("Failed to create hub: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)
	go h.RunSummaryRefresher(ctx, hub.SummaryInitialDelay, hub.SummaryRefreshInterval)

	if resumed {
		seedCtx, seedCancel := context.WithTimeout(ctx, 30*time.Second)
		stored, err := memoryClient.ListMessages(seedCtx)
		seedCancel()
		if err != nil {
			slog.Error("Failed to load messages from existing session", "error", err)
		} else {
			h.SeedHistory(stored)
		}
	}

	if *demoAgents {
		go agents.StartDemoAgents(ctx, "http://localhost:"+*port)
	} else {
		slog.Info("Demo agents disabled")
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("huddle-hub"))
	routes.SetupRoutes(router, h)

	slog.Info("Starting the hub server", "port", *port)
	if err := router.Run(":" + *port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
