// Package pool is a bounded worker pool. Handlers that hit the database run
// through it so concurrency stays capped under load.
package pool

import (
	"log"
	"sync"
)

type WorkerPool struct {
	jobQueue  chan func()
	workerNum int
	wg        sync.WaitGroup
	quit      chan struct{}
}

func NewWorkerPool(workerNum, queueSize int) *WorkerPool {
	return &WorkerPool{
		jobQueue:  make(chan func(), queueSize),
		workerNum: workerNum,
		quit:      make(chan struct{}),
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.workerNum; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for {
				select {
				case job := <-p.jobQueue:
					// recover so one panicking job cannot kill the worker
					func() {
						defer func() {
							if r := recover(); r != nil {
								log.Printf("worker %d panic: %v", workerID, r)
							}
						}()
						job()
					}()
				case <-p.quit:
					return
				}
			}
		}(i)
	}
}

// Submit blocks when the queue is full. Requests queue up instead of being
// rejected outright.
func (p *WorkerPool) Submit(job func()) {
	p.jobQueue <- job
}

func (p *WorkerPool) Stop() {
	close(p.quit)
	p.wg.Wait()
}
