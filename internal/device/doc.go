// Package device holds the state model of the Nuki devices behind a bridge.
//
// It is pure: no I/O, no timers. Raw status reports come in, externally
// visible snapshots and command plans come out.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                          Store                               │
//	│           Nuki ID → entry{mutex, View, Behavior}             │
//	│                                                              │
//	│   Reconcile(RawStatus) ──┐          ┌── Mutate(Plan.Before)  │
//	│                          ▼          ▼                        │
//	│   ┌──────────────────┐   ┌──────────────────┐                │
//	│   │   lockBehavior   │   │  openerBehavior  │                │
//	│   │   (lock.go)      │   │  (opener.go)     │                │
//	│   │ • 1/3/5/254      │   │ • 1/3/5/7, mode  │                │
//	│   │ • latch coupling │   │ • RTO, doorbell  │                │
//	│   │ • door sensor    │   │ • leave open     │                │
//	│   └──────────────────┘   └──────────────────┘                │
//	│                          │                                   │
//	│                 Observer(Change{Snapshot, Events})           │
//	└──────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - RawStatus: one normalized status report (listing or push)
//   - View: derived state of one device, owned by the Store
//   - Snapshot: immutable description of a View for publishing
//   - Behavior: kind-specific Reconcile, Describe and Translate
//   - Command / Plan: user intent and its translation into a bridge action
//
// # Thread Safety
//
// Store methods are safe for concurrent use. Each device has its own lock;
// reconciliation, optimistic updates and removal of one device are
// serialized, different devices proceed in parallel. Behaviors are stateless.
//
// # Usage
//
//	store := device.NewStore()
//	store.OnChange(func(c device.Change) { publish(c.Snapshot) })
//
//	store.Add(device.NewView(42, device.KindSmartLock, "Front Door", settings))
//	store.Reconcile(device.RawStatus{NukiID: 42, State: 1})
package device
