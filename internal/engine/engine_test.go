package engine_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mrsim/internal/constraint"
	"github.com/san-kum/mrsim/internal/control"
	"github.com/san-kum/mrsim/internal/dynamo"
	"github.com/san-kum/mrsim/internal/engine"
	"github.com/san-kum/mrsim/internal/logging"
	"github.com/san-kum/mrsim/internal/physics"
)

type observerFunc func(ev dynamo.StepEvent)

func (f observerFunc) OnStep(ev dynamo.StepEvent) { f(ev) }

type countingController struct {
	calls int
	times []float64
}

func (c *countingController) Compute(s dynamo.SystemState, t float64) dynamo.State {
	c.calls++
	c.times = append(c.times, t)
	return make(dynamo.State, len(s.V))
}

func newEngine(cfg dynamo.Config) *engine.Engine {
	e, err := engine.New(cfg, engine.WithLogger(logging.Discard()))
	Expect(err).NotTo(HaveOccurred())
	return e
}

func state(q, v dynamo.State) dynamo.SystemState {
	return dynamo.SystemState{Q: q, V: v}
}

var _ = Describe("Engine", func() {
	var cfg dynamo.Config

	BeforeEach(func() {
		cfg = dynamo.DefaultConfig()
		cfg.Stepper.Atol = 1e-6
		cfg.Stepper.Rtol = 1e-6
		cfg.Stepper.DtMax = 0.01
	})

	Describe("two masses joined by a spring", func() {
		var (
			e     *engine.Engine
			left  *physics.SpringMass
			right *physics.SpringMass
		)

		BeforeEach(func() {
			e = newEngine(cfg)
			left, right = physics.NewFreeMass(1), physics.NewFreeMass(2)
			Expect(e.AddSystem("left", left, nil)).To(Succeed())
			Expect(e.AddSystem("right", right, nil)).To(Succeed())
			Expect(e.AddCouplingForce("spring", "left", "right", physics.NewLinearSpring(10))).To(Succeed())
			Expect(e.Start(map[string]dynamo.SystemState{
				"left":  state(dynamo.State{1}, dynamo.State{0}),
				"right": state(dynamo.State{0}, dynamo.State{0}),
			})).To(Succeed())
		})

		It("conserves energy and momentum up to t=10", func() {
			e0 := e.TotalEnergy(nil)
			Expect(e0).To(BeNumerically("~", 5.0, 1e-12))

			var dts []float64
			e.AddObserver(observerFunc(func(ev dynamo.StepEvent) {
				dts = append(dts, ev.Dt)
			}))

			log, err := e.Simulate(context.Background(), 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Time()).To(BeNumerically("~", 10, 1e-9))
			Expect(log.Len()).To(Equal(log.Accepted + 1))
			Expect(log.Energy).To(HaveLen(log.Len()))

			Expect(math.Abs(e.TotalEnergy(nil) - e0)).To(BeNumerically("<", 1e-4))

			final := log.Final().States
			p := left.Momentum(final[0].V) + right.Momentum(final[1].V)
			Expect(math.Abs(p)).To(BeNumerically("<", 1e-9))

			Expect(dts).NotTo(BeEmpty())
			for _, dt := range dts {
				Expect(dt).To(BeNumerically(">=", cfg.Stepper.DtMin))
				Expect(dt).To(BeNumerically("<=", cfg.Stepper.DtMax))
			}
		})

		It("records equal and opposite coupling forces", func() {
			l, err := e.State("left")
			Expect(err).NotTo(HaveOccurred())
			r, err := e.State("right")
			Expect(err).NotTo(HaveOccurred())
			Expect(l.Forces[0]).To(BeNumerically("~", -10, 1e-12))
			Expect(r.Forces[0]).To(BeNumerically("~", 10, 1e-12))
			Expect(l.A[0]).To(BeNumerically("~", -10, 1e-12))
			Expect(r.A[0]).To(BeNumerically("~", 5, 1e-12))
		})

		It("is deterministic", func() {
			other := newEngine(cfg)
			Expect(other.AddSystem("left", physics.NewFreeMass(1), nil)).To(Succeed())
			Expect(other.AddSystem("right", physics.NewFreeMass(2), nil)).To(Succeed())
			Expect(other.AddCouplingForce("spring", "left", "right", physics.NewLinearSpring(10))).To(Succeed())
			Expect(other.Start(map[string]dynamo.SystemState{
				"left":  state(dynamo.State{1}, dynamo.State{0}),
				"right": state(dynamo.State{0}, dynamo.State{0}),
			})).To(Succeed())

			for i := 0; i < 50; i++ {
				ta, err := e.Step(0)
				Expect(err).NotTo(HaveOccurred())
				tb, err := other.Step(0)
				Expect(err).NotTo(HaveOccurred())
				Expect(ta).To(Equal(tb))
			}
			Expect(e.States()).To(Equal(other.States()))
		})
	})

	It("keeps a pinned frame on its reference", func() {
		body := physics.NewPlanarBody()
		pin := constraint.NewFixedFrame("pin", physics.FrameTip, nil)

		e := newEngine(cfg)
		Expect(e.AddSystem("body", body, nil, pin)).To(Succeed())
		Expect(e.Start(map[string]dynamo.SystemState{
			"body": state(dynamo.State{0, 0, 0}, dynamo.State{0, 0, 0}),
		})).To(Succeed())

		worst := 0.0
		e.AddObserver(observerFunc(func(ev dynamo.StepEvent) {
			v, err := constraint.MaxViolation([]constraint.Constraint{pin}, ev.States[0].Q)
			Expect(err).NotTo(HaveOccurred())
			worst = math.Max(worst, v)
		}))

		_, err := e.Simulate(context.Background(), 1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(worst).To(BeNumerically("<", 1e-9))

		// The body swings below the pin instead of falling away.
		s, err := e.State("body")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Q[1]).To(BeNumerically("<", 0))
		Expect(math.Hypot(s.Q[0]-0.5, s.Q[1])).To(BeNumerically("~", 0.5, 1e-9))
	})

	It("lands a falling mass on a contact", func() {
		ground := constraint.NewContact("ground", physics.FrameBody, 1, 0)
		e := newEngine(cfg)
		Expect(e.AddSystem("ball", physics.NewPointMass(), nil, ground)).To(Succeed())
		Expect(e.Start(map[string]dynamo.SystemState{
			"ball": state(dynamo.State{0, 1}, dynamo.State{0.5, 0}),
		})).To(Succeed())

		lowest := math.Inf(1)
		e.AddObserver(observerFunc(func(ev dynamo.StepEvent) {
			lowest = math.Min(lowest, ev.States[0].Q[1])
		}))

		_, err := e.Simulate(context.Background(), 1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(ground.Active()).To(BeTrue())
		Expect(lowest).To(BeNumerically(">", -1e-9))

		s, err := e.State("ball")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Q[1]).To(BeNumerically("~", 0, 1e-9))
		Expect(s.V[1]).To(BeNumerically("~", 0, 1e-9))
		Expect(s.V[0]).To(BeNumerically("~", 0.5, 1e-9))
	})

	It("applies a force impulse over its exact window", func() {
		e := newEngine(cfg)
		Expect(e.AddSystem("mass", physics.NewFreeMass(1), nil)).To(Succeed())
		Expect(e.RegisterForceImpulse("mass", 0.5, 0.25, dynamo.State{2})).To(Succeed())
		Expect(e.Start(map[string]dynamo.SystemState{
			"mass": state(dynamo.State{0}, dynamo.State{0}),
		})).To(Succeed())

		var times []float64
		e.AddObserver(observerFunc(func(ev dynamo.StepEvent) { times = append(times, ev.T) }))

		_, err := e.Simulate(context.Background(), 1, 0)
		Expect(err).NotTo(HaveOccurred())

		s, err := e.State("mass")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.V[0]).To(BeNumerically("~", 0.5, 1e-9))
		Expect(times).To(ContainElement(BeNumerically("~", 0.5, 1e-12)))
		Expect(times).To(ContainElement(BeNumerically("~", 0.75, 1e-12)))
	})

	It("adds force profiles to the applied forces", func() {
		e := newEngine(cfg)
		Expect(e.AddSystem("mass", physics.NewFreeMass(1), nil)).To(Succeed())
		Expect(e.RegisterForceProfile("mass", func(s dynamo.SystemState, t float64) dynamo.State {
			return dynamo.State{1}
		})).To(Succeed())
		Expect(e.Start(map[string]dynamo.SystemState{
			"mass": state(dynamo.State{0}, dynamo.State{0}),
		})).To(Succeed())

		_, err := e.Simulate(context.Background(), 2, 0)
		Expect(err).NotTo(HaveOccurred())
		s, err := e.State("mass")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Q[0]).To(BeNumerically("~", 2, 1e-9))
		Expect(s.V[0]).To(BeNumerically("~", 2, 1e-9))
	})

	It("updates controllers on their own clock", func() {
		cfg.Stepper.ControllerUpdatePeriod = 0.1
		ctrl := &countingController{}
		e := newEngine(cfg)
		Expect(e.AddSystem("mass", physics.NewFreeMass(1), ctrl)).To(Succeed())
		Expect(e.Start(map[string]dynamo.SystemState{
			"mass": state(dynamo.State{0}, dynamo.State{1}),
		})).To(Succeed())

		_, err := e.Simulate(context.Background(), 1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(ctrl.calls).To(Equal(11))
		for k, t := range ctrl.times {
			Expect(t).To(BeNumerically("~", 0.1*float64(k), 1e-9))
		}
	})

	It("ends Simulate when a stop condition fires", func() {
		e := newEngine(cfg)
		ctrl := control.StopWhen(nil, control.Below(1, 0.5))
		Expect(e.AddSystem("ball", physics.NewPointMass(), ctrl)).To(Succeed())
		Expect(e.Start(map[string]dynamo.SystemState{
			"ball": state(dynamo.State{0, 1}, dynamo.State{0, 0}),
		})).To(Succeed())

		log, err := e.Simulate(context.Background(), 5, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Time()).To(BeNumerically("<", 1))
		Expect(log.Final().States[0].Q[1]).To(BeNumerically("<", 0.5))
	})

	Describe("lifecycle", func() {
		var e *engine.Engine

		BeforeEach(func() {
			e = newEngine(cfg)
			Expect(e.AddSystem("mass", physics.NewFreeMass(1), nil)).To(Succeed())
		})

		It("rejects stepping before Start", func() {
			_, err := e.Step(0)
			Expect(err).To(MatchError(dynamo.ErrEngineNotInitialized))
			_, err = e.Simulate(context.Background(), 1, 0)
			Expect(err).To(MatchError(dynamo.ErrEngineNotInitialized))
			Expect(e.Status()).To(Equal(engine.StatusUninitialized))
		})

		It("validates initial states", func() {
			Expect(e.Start(map[string]dynamo.SystemState{})).To(MatchError(dynamo.ErrDimensionMismatch))
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{0, 0}, dynamo.State{0}),
			})).To(MatchError(dynamo.ErrDimensionMismatch))
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass":  state(dynamo.State{0}, dynamo.State{0}),
				"ghost": state(dynamo.State{0}, dynamo.State{0}),
			})).To(MatchError(dynamo.ErrUnknownSystem))
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{math.NaN()}, dynamo.State{0}),
			})).To(MatchError(dynamo.ErrInvalidState))
		})

		It("rejects duplicate and unknown names", func() {
			Expect(e.AddSystem("mass", physics.NewFreeMass(2), nil)).To(MatchError(dynamo.ErrDuplicateSystem))
			Expect(e.AddCouplingForce("s", "mass", "ghost", physics.NewLinearSpring(1))).To(MatchError(dynamo.ErrUnknownSystem))
			Expect(e.RegisterForceImpulse("mass", 0, 1, dynamo.State{1, 2})).To(MatchError(dynamo.ErrDimensionMismatch))
		})

		It("walks Ready, Running, Stopped and back", func() {
			rec := engine.NewMemoryRecorder()
			Expect(e.SetRecorder(rec)).To(Succeed())
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{0}, dynamo.State{1}),
			})).To(Succeed())
			Expect(e.Status()).To(Equal(engine.StatusReady))
			Expect(e.AddSystem("late", physics.NewFreeMass(1), nil)).To(MatchError(dynamo.ErrRegistrationClosed))

			_, err := e.Step(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Status()).To(Equal(engine.StatusRunning))

			Expect(e.Stop()).To(Succeed())
			Expect(e.Stop()).To(Succeed())
			Expect(e.Status()).To(Equal(engine.StatusStopped))
			Expect(rec.Closed()).To(BeTrue())
			Expect(rec.Samples()).To(HaveLen(2))

			_, err = e.Step(0)
			Expect(err).To(MatchError(dynamo.ErrEngineStopped))

			Expect(e.Reset()).To(Succeed())
			Expect(e.Status()).To(Equal(engine.StatusUninitialized))
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{0}, dynamo.State{1}),
			})).To(Succeed())
			Expect(e.Time()).To(BeZero())
		})

		It("rejects reentrant calls from callbacks", func() {
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{0}, dynamo.State{1}),
			})).To(Succeed())

			var inner []error
			e.AddObserver(observerFunc(func(ev dynamo.StepEvent) {
				_, err := e.Step(0)
				inner = append(inner, err)
				_, err = e.Simulate(context.Background(), 1, 0)
				inner = append(inner, err)
			}))

			_, err := e.Step(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(inner).To(HaveLen(2))
			for _, err := range inner {
				Expect(err).To(MatchError(dynamo.ErrReentrantCall))
			}
		})

		It("honours Stop requested from a callback", func() {
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{0}, dynamo.State{1}),
			})).To(Succeed())
			e.AddObserver(observerFunc(func(ev dynamo.StepEvent) {
				if ev.Step == 3 {
					Expect(e.Stop()).To(Succeed())
				}
			}))

			log, err := e.Simulate(context.Background(), 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(log.Len()).To(Equal(4))
			Expect(e.Status()).To(Equal(engine.StatusStopped))
		})
	})

	Describe("cancellation", func() {
		var e *engine.Engine

		BeforeEach(func() {
			e = newEngine(cfg)
			Expect(e.AddSystem("mass", physics.NewFreeMass(1), nil)).To(Succeed())
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{0}, dynamo.State{1}),
			})).To(Succeed())
		})

		It("returns the initial sample when already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			log, err := e.Simulate(ctx, 1, 0)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(errors.Is(err, dynamo.ErrContextCanceled)).To(BeTrue())
			Expect(log.Len()).To(Equal(1))
			Expect(e.Time()).To(BeZero())
		})

		It("stops at an accepted step boundary", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			e.AddObserver(observerFunc(func(ev dynamo.StepEvent) {
				if ev.Step == 5 {
					cancel()
				}
			}))

			log, err := e.Simulate(ctx, 1, 0)
			Expect(err).To(MatchError(context.Canceled))
			Expect(log.Len()).To(Equal(6))
			Expect(log.Final().T).To(Equal(e.Time()))
		})
	})

	Describe("step bounds", func() {
		BeforeEach(func() {
			cfg.Stepper.DtMin = 0.004
			cfg.Stepper.DtMax = 0.01
		})

		It("keeps the step that lands on tEnd inside [DtMin, DtMax]", func() {
			e := newEngine(cfg)
			Expect(e.AddSystem("mass", physics.NewFreeMass(1), nil)).To(Succeed())
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{0}, dynamo.State{1}),
			})).To(Succeed())

			var dts []float64
			e.AddObserver(observerFunc(func(ev dynamo.StepEvent) { dts = append(dts, ev.Dt) }))

			_, err := e.Simulate(context.Background(), 0.013, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Time()).To(BeNumerically("~", 0.013, 1e-12))
			Expect(dts).NotTo(BeEmpty())
			for _, dt := range dts {
				Expect(dt).To(BeNumerically(">=", cfg.Stepper.DtMin*(1-1e-9)))
				Expect(dt).To(BeNumerically("<=", cfg.Stepper.DtMax*(1+1e-9)))
			}
		})

		It("splits a remainder too long for one step", func() {
			e := newEngine(cfg)
			Expect(e.AddSystem("mass", physics.NewFreeMass(1), nil)).To(Succeed())
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{0}, dynamo.State{1}),
			})).To(Succeed())

			var dts []float64
			e.AddObserver(observerFunc(func(ev dynamo.StepEvent) { dts = append(dts, ev.Dt) }))

			_, err := e.Simulate(context.Background(), 0.0325, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Time()).To(BeNumerically("~", 0.0325, 1e-12))
			for _, dt := range dts {
				Expect(dt).To(BeNumerically(">=", cfg.Stepper.DtMin*(1-1e-9)))
				Expect(dt).To(BeNumerically("<=", cfg.Stepper.DtMax*(1+1e-9)))
			}
		})

		It("rejects an impulse edge closer than two minimal steps", func() {
			e := newEngine(cfg)
			Expect(e.AddSystem("mass", physics.NewFreeMass(1), nil)).To(Succeed())
			Expect(e.RegisterForceImpulse("mass", 0.001, 0.5, dynamo.State{1})).To(Succeed())
			err := e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{0}, dynamo.State{0}),
			})
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
		})

		It("rejects a caller bound below two minimal steps", func() {
			e := newEngine(cfg)
			Expect(e.AddSystem("mass", physics.NewFreeMass(1), nil)).To(Succeed())
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{0}, dynamo.State{0}),
			})).To(Succeed())

			_, err := e.Simulate(context.Background(), 1, 0.005)
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
			_, err = e.Step(0.005)
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
			Expect(e.Time()).To(BeZero())
		})

		It("rejects a tEnd just past the previous breakpoint", func() {
			e := newEngine(cfg)
			Expect(e.AddSystem("mass", physics.NewFreeMass(1), nil)).To(Succeed())
			Expect(e.RegisterForceImpulse("mass", 0.1, 0.1, dynamo.State{1})).To(Succeed())
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{0}, dynamo.State{0}),
			})).To(Succeed())

			_, err := e.Simulate(context.Background(), 0.201, 0)
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
			Expect(e.Time()).To(BeZero())
		})
	})

	Describe("redundant pins", func() {
		var (
			e       *engine.Engine
			initial map[string]dynamo.SystemState
		)

		build := func(drop bool) {
			cfg.Constraints.DropRedundant = drop
			e = newEngine(cfg)
			Expect(e.AddSystem("body", physics.NewPlanarBody(), nil,
				constraint.NewFixedFrame("a", physics.FrameTip, nil),
				constraint.NewFixedFrame("b", physics.FrameTip, nil),
			)).To(Succeed())
			initial = map[string]dynamo.SystemState{
				"body": state(dynamo.State{0, 0, 0}, dynamo.State{0, 0, 0}),
			}
			Expect(e.Start(initial)).To(Succeed())
		}

		It("reports a singular constraint set without committing state", func() {
			build(false)

			_, err := e.Step(0)
			Expect(err).To(MatchError(dynamo.ErrConstraintSingularity))
			var se *dynamo.SimulationError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Step).To(BeZero())

			s, err := e.State("body")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Q).To(Equal(initial["body"].Q))
			Expect(e.Time()).To(BeZero())

			_, err = e.Simulate(context.Background(), 0.1, 0)
			Expect(err).To(MatchError(dynamo.ErrConstraintSingularity))
			Expect(errors.As(err, &se)).To(BeTrue())
		})

		It("drops the duplicate rows and keeps going", func() {
			build(true)

			_, err := e.Step(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Time()).To(BeNumerically(">", 0))
			Expect(e.Stats().Dropped).To(Equal(2))
		})
	})

	Describe("restarts", func() {
		It("pins an automatic reference to the new initial state", func() {
			pin := constraint.NewFixedFrame("pin", physics.FrameTip, nil)
			e := newEngine(cfg)
			Expect(e.AddSystem("body", physics.NewPlanarBody(), nil, pin)).To(Succeed())
			Expect(e.Start(map[string]dynamo.SystemState{
				"body": state(dynamo.State{0, 0, 0}, dynamo.State{0, 0, 0}),
			})).To(Succeed())
			first := pin.Reference.Clone()

			Expect(e.Reset()).To(Succeed())
			Expect(e.Start(map[string]dynamo.SystemState{
				"body": state(dynamo.State{1, 2, 0}, dynamo.State{0, 0, 0}),
			})).To(Succeed())
			Expect(pin.Reference[0]).To(BeNumerically("~", first[0]+1, 1e-12))
			Expect(pin.Reference[1]).To(BeNumerically("~", first[1]+2, 1e-12))

			_, err := e.Simulate(context.Background(), 0.1, 0)
			Expect(err).NotTo(HaveOccurred())
			worst, err := constraint.MaxViolation([]constraint.Constraint{pin}, e.States()[0].Q)
			Expect(err).NotTo(HaveOccurred())
			Expect(worst).To(BeNumerically("<", 1e-9))
		})
	})

	Describe("failures", func() {
		It("reports divergence without committing state", func() {
			cfg.Stepper.DtInitial = 0.05
			cfg.Stepper.DtMin = 0.01
			cfg.Stepper.DtMax = 0.1
			cfg.Stepper.Rtol = 1e-12
			cfg.Stepper.Atol = 1e-12
			e := newEngine(cfg)
			Expect(e.AddSystem("stiff", physics.NewStiffOscillator(1e8), nil)).To(Succeed())
			Expect(e.Start(map[string]dynamo.SystemState{
				"stiff": state(dynamo.State{1}, dynamo.State{0}),
			})).To(Succeed())

			_, err := e.Step(0)
			Expect(err).To(MatchError(dynamo.ErrStepperDivergence))
			var se *dynamo.SimulationError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Step).To(BeZero())
			Expect(se.Time).To(BeZero())

			s, err := e.State("stiff")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Q[0]).To(Equal(1.0))
			Expect(e.StepperState().Accepted).To(BeZero())
		})

		It("enforces the iteration budget", func() {
			cfg.Stepper.IterMax = 3
			e := newEngine(cfg)
			Expect(e.AddSystem("mass", physics.NewFreeMass(1), nil)).To(Succeed())
			Expect(e.Start(map[string]dynamo.SystemState{
				"mass": state(dynamo.State{0}, dynamo.State{1}),
			})).To(Succeed())

			log, err := e.Simulate(context.Background(), 10, 0)
			Expect(err).To(MatchError(dynamo.ErrIterationLimit))
			Expect(log.Len()).To(Equal(4))
		})
	})
})
