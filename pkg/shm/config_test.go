/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// testConfig keeps metrics off the default registry so each test counts
// only its own calls.
func testConfig() *Config {
	config := DefaultConfig()
	config.HugePageSize = DefaultHugePageSize
	config.ReadyTimeout = 2 * time.Second
	config.Registerer = prometheus.NewRegistry()
	config.Meter = metricnoop.NewMeterProvider().Meter("test")
	config.Tracer = tracenoop.NewTracerProvider().Tracer("test")
	return config
}

type ConfigTestSuite struct {
	suite.Suite
}

func (s *ConfigTestSuite) TestVerifyConfig() {
	s.Require().ErrorIs(VerifyConfig(nil), ErrInvalidConfig)

	config := DefaultConfig()
	s.Require().Nil(VerifyConfig(config))

	config.HugePageSize = 3 << 20
	s.Require().ErrorIs(VerifyConfig(config), ErrInvalidConfig)
	config.HugePageSize = 2048
	s.Require().ErrorIs(VerifyConfig(config), ErrInvalidConfig)
	config.HugePageSize = 1 << 30
	s.Require().Nil(VerifyConfig(config))

	config.ReadyTimeout = 0
	s.Require().ErrorIs(VerifyConfig(config), ErrInvalidConfig)
	config.ReadyTimeout = time.Second

	config.SpinIterations = -1
	s.Require().ErrorIs(VerifyConfig(config), ErrInvalidConfig)
	config.SpinIterations = 0
	s.Require().Nil(VerifyConfig(config))

	config.PollInterval = 0
	s.Require().ErrorIs(VerifyConfig(config), ErrInvalidConfig)
	config.PollInterval = time.Millisecond

	config.MaxPollInterval = time.Microsecond
	s.Require().ErrorIs(VerifyConfig(config), ErrInvalidConfig)
	config.MaxPollInterval = time.Millisecond
	s.Require().Nil(VerifyConfig(config))
}

func (s *ConfigTestSuite) TestNewManagerByWrongConfig() {
	config := DefaultConfig()
	config.ReadyTimeout = -time.Second
	m, err := NewManager(config)
	s.Require().ErrorIs(err, ErrInvalidConfig)
	s.Require().Nil(m)
}

func (s *ConfigTestSuite) TestWithDefaults() {
	config := &Config{ReadyTimeout: time.Second, PollInterval: time.Millisecond, MaxPollInterval: time.Millisecond}
	filled := config.withDefaults()
	s.Require().NotNil(filled.Finder)
	s.Require().NotNil(filled.Meter)
	s.Require().NotNil(filled.Tracer)
	s.Require().Nil(config.Finder, "the caller's config is not modified")

	m, err := NewManager(config)
	s.Require().Nil(err)
	s.Require().NotNil(m.finder)
}

func (s *ConfigTestSuite) TestLayout() {
	config := testConfig()
	config.HugePageSize = 1 << 30
	m, err := NewManager(config)
	s.Require().Nil(err)
	s.Equal(uint64(1<<30), m.Layout().HugePageSize)

	config.HugePageSize = 0
	hp := config.layout().HugePageSize
	s.NotZero(hp)
	s.Zero(hp & (hp - 1))
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
